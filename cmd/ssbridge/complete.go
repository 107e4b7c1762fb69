package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ssbridge/ssbridge/internal/config"
	"github.com/ssbridge/ssbridge/pkg/stackspot"
)

var (
	completeModel       string
	completeTemperature float64
	completeMaxTokens   int
	completeTimeout     time.Duration
	completeUsage       bool
)

var completeCmd = &cobra.Command{
	Use:   "complete <prompt>",
	Short: "Run a one-shot completion against StackSpot AI",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if completeTimeout > 0 {
			cfg.StackSpot.PollTimeout = completeTimeout
		}

		client, err := stackspot.New(cfg.StackSpot)
		if err != nil {
			return err
		}

		completion, err := client.Complete(cmd.Context(), stackspot.ChatRequest{
			Model:       completeModel,
			Messages:    []stackspot.Message{{Role: "user", Content: strings.Join(args, " ")}},
			Temperature: completeTemperature,
			MaxTokens:   completeMaxTokens,
		})
		if err != nil {
			return err
		}

		fmt.Println(completion.Choices[0].Message.Content)
		if completeUsage {
			fmt.Printf("\n[%s | prompt %d + completion %d = %d tokens]\n",
				completion.Model,
				completion.Usage.PromptTokens,
				completion.Usage.CompletionTokens,
				completion.Usage.TotalTokens)
		}
		return nil
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify credentials by fetching an access token",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		client, err := stackspot.New(cfg.StackSpot)
		if err != nil {
			return err
		}
		if err := client.CheckAuth(cmd.Context()); err != nil {
			return err
		}

		fmt.Println("Credentials OK: token acquired.")
		return nil
	},
}

func init() {
	completeCmd.Flags().StringVar(&completeModel, "model", "", "model name (default stackspot-ai)")
	completeCmd.Flags().Float64Var(&completeTemperature, "temperature", 0.7, "sampling temperature")
	completeCmd.Flags().IntVar(&completeMaxTokens, "max-tokens", 0, "max tokens to generate (0 = vendor default)")
	completeCmd.Flags().DurationVar(&completeTimeout, "timeout", 0, "polling wall-clock timeout (default 60s)")
	completeCmd.Flags().BoolVar(&completeUsage, "usage", false, "print token usage after the answer")
	rootCmd.AddCommand(completeCmd)
	rootCmd.AddCommand(checkCmd)
}
