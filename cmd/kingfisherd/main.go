package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/clarencelabs/kingfisher/config"
	"github.com/clarencelabs/kingfisher/internal/llm"
	"github.com/clarencelabs/kingfisher/internal/pipeline"
	srv "github.com/clarencelabs/kingfisher/internal/server"
)

func main() {
	var root = &cobra.Command{Use: "kingfisherd"}

	var configPath string
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")

	var serveAddr string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(configPath)
			if serveAddr != "" {
				cfg.Server.Address = serveAddr
			}
			return srv.Run(cfg)
		},
	}
	serve.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")

	var ask = &cobra.Command{
		Use:   "ask [prompt]",
		Short: "Answer one prompt and print the response as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(configPath)
			provider := llm.NewOpenAIProvider(cfg.LLM)
			pipe, err := srv.BuildPipeline(cfg, provider)
			if err != nil {
				return err
			}
			prompt := ""
			for i, a := range args {
				if i > 0 {
					prompt += " "
				}
				prompt += a
			}
			resp, err := pipe.Answer(context.Background(), prompt)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		},
	}

	var stream = &cobra.Command{
		Use:   "stream [prompt]",
		Short: "Answer one prompt, printing progressive events",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(configPath)
			provider := llm.NewOpenAIProvider(cfg.LLM)
			pipe, err := srv.BuildPipeline(cfg, provider)
			if err != nil {
				return err
			}
			prompt := ""
			for i, a := range args {
				if i > 0 {
					prompt += " "
				}
				prompt += a
			}
			for ev := range pipe.Stream(cmd.Context(), prompt) {
				data, err := pipeline.MarshalEvent(ev)
				if err != nil {
					return err
				}
				fmt.Println(string(data))
			}
			return nil
		},
	}

	root.AddCommand(serve, ask, stream)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
