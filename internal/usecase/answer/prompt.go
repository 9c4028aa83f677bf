package answer

import (
	"strings"
	"text/template"
)

var classifyTemplate = template.Must(template.New("classify").Parse(`You are a role extraction assistant.

Extract the user's role from this query.
Return only ONE WORD from this set:
{{- range .Roles}}
- {{.}}
{{- end}}

If the role is not explicitly stated, return "unknown".

Query: "{{.Query}}"
`))

var answerTemplate = template.Must(template.New("answer").Parse(`You are {{.Assistant}}.

Below are policy snippets with metadata such as:
- effective_date
- role_scope
- doc_type

You MUST answer ONLY using these documents.

=========================================================
CONFLICT RESOLUTION RULES (MANDATORY)
=========================================================

1. ROLE-SPECIFIC RULES override general rules.
   If a policy's role_scope matches the user's role ({{.Role}}), it overrides
   handbook and general updates.

2. NEWER DOCUMENTS override older ones.
   Compare effective_date (YYYY-MM-DD); 2024-06-01 overrides 2024-01-15.

3. If an older rule allowed something that a newer rule restricts,
   the newer restriction MUST be followed.

4. If conflicts still remain, APPLY THE MOST RESTRICTIVE policy.

5. Cite the exact files used, in this format:
   - Source: filename.txt

The snippets are already ordered by precedence; the first one wins a tie.

=========================================================
DOCUMENT CONTEXT
=========================================================
{{.Context}}
=========================================================
USER QUERY
=========================================================
"{{.Query}}"

Now produce the correct, authoritative answer following ALL rules above.
`))

func render(t *template.Template, data any) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", err //nolint:wrapcheck // templates are static; callers add context
	}
	return b.String(), nil
}
