package main

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/policyrag/internal/domain/role"
	answeruc "github.com/kailas-cloud/policyrag/internal/usecase/answer"
)

var answerRole string

var answerCmd = &cobra.Command{
	Use:   "answer <query>",
	Short: "Answer a policy question from the stored documents",
	Long: `Answers a question grounded on the ranked policy context. Without --role
the requester's role is classified from the question itself.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnswer,
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Ask policy questions interactively",
	Args:  cobra.NoArgs,
	RunE:  runChat,
}

func init() {
	answerCmd.Flags().StringVarP(&answerRole, "role", "r", "", "requester role (skips classification)")
	chatCmd.Flags().StringVarP(&answerRole, "role", "r", "", "requester role (skips classification)")
	rootCmd.AddCommand(answerCmd, chatCmd)
}

func newAnswerApp(cmd *cobra.Command) (*app, error) {
	a, err := newApp(cmd.Context(), envName)
	if err != nil {
		return nil, err
	}
	if a.answer == nil {
		a.close()
		return nil, errors.New("generation.model is not configured")
	}
	return a, nil
}

func runAnswer(cmd *cobra.Command, args []string) error {
	a, err := newAnswerApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	ans, err := ask(cmd.Context(), a.answer, args[0], answerRole)
	if err != nil {
		return err
	}
	printAnswer(cmd, ans)
	return nil
}

func runChat(cmd *cobra.Command, _ []string) error {
	a, err := newAnswerApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	cmd.Println("Policy assistant ready. Type 'exit' to quit.")
	return chatLoop(cmd.Context(), cmd.InOrStdin(), cmd, func(ctx context.Context, q string) (answeruc.Answer, error) {
		return ask(ctx, a.answer, q, answerRole)
	})
}

// maxQuestionBytes bounds one chat line; pasted policy excerpts can exceed bufio's 64 KiB default.
const maxQuestionBytes = 4 << 20

// chatLoop answers one question per input line until EOF or an exit word.
// A failed question is reported and the loop continues.
func chatLoop(
	ctx context.Context,
	in io.Reader,
	cmd *cobra.Command,
	answer func(context.Context, string) (answeruc.Answer, error),
) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxQuestionBytes)
	for {
		cmd.Print("\nYou: ")
		if !scanner.Scan() {
			cmd.Println()
			return scanner.Err()
		}
		q := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(q) {
		case "":
			continue
		case "exit", "quit", "q":
			return nil
		}

		ans, err := answer(ctx, q)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			cmd.PrintErrf("error: %v\n", err)
			continue
		}
		printAnswer(cmd, ans)
	}
}

func ask(ctx context.Context, svc *answeruc.Service, query, roleName string) (answeruc.Answer, error) {
	if roleName == "" {
		return svc.Answer(ctx, query)
	}
	r, err := role.Parse(roleName)
	if err != nil {
		return answeruc.Answer{}, err
	}
	return svc.AnswerAs(ctx, query, r)
}

func printAnswer(cmd *cobra.Command, ans answeruc.Answer) {
	cmd.Printf("\nAssistant (%s):\n%s\n", ans.Role, ans.Text)
	if sources := ans.Bundle.Sources(); len(sources) > 0 {
		cmd.Printf("\nSources: %s\n", strings.Join(sources, ", "))
	}
}
