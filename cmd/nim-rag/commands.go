package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/becomeliminal/nim-rag/agent"
	"github.com/becomeliminal/nim-rag/config"
	"github.com/becomeliminal/nim-rag/retrieval"
	"github.com/becomeliminal/nim-rag/server"
)

func ingestCmd() *cobra.Command {
	var keep bool
	cmd := &cobra.Command{
		Use:   "ingest <path>",
		Short: "Load a document into the index, replacing what was there",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildIndex(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			start := time.Now()
			ingestFn := a.pipeline.Replace
			if keep {
				ingestFn = a.pipeline.Ingest
			}
			n, err := ingestFn(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s %d chunks from %s in %s\n",
				promptColor.Sprint("Ingested"), n, args[0], time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().BoolVar(&keep, "append", false, "add to the existing index instead of replacing it")
	return cmd
}

func askCmd() *cobra.Command {
	var showScores, showReasoning bool
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a single question about the ingested document",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ag, a, err := buildAgent(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			question := strings.Join(args, " ")
			if showScores {
				scored, err := ag.RetrieveWithScores(cmd.Context(), question)
				if err != nil {
					fmt.Println(errorColor.Sprintf("Retrieval failed: %v", err))
				} else {
					printScores(scored)
				}
			}

			ans := ag.Ask(cmd.Context(), question)
			if showReasoning {
				printReasoning(ans.Traces)
			}
			printAnswer(ans)
			return ans.Err
		},
	}
	cmd.Flags().BoolVar(&showScores, "scores", false, "print retrieved chunks with similarity scores")
	cmd.Flags().BoolVar(&showReasoning, "reasoning", false, "print the reasoning steps")
	return cmd
}

func chatCmd() *cobra.Command {
	var showReasoning bool
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive conversation about the ingested document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ag, a, err := buildAgent(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			st := ag.Settings()
			fmt.Println(headerColor.Sprint("nim-rag chat"))
			fmt.Printf("Model: %s, temperature %.2f, top_k %d\n", answerColor.Sprint(st.Model), st.Temperature, st.TopK)
			fmt.Println("Commands: /clear, /summary, /model <name>, /temp <0-1>, /topk <1-10>, /exit")
			fmt.Println()

			scanner := bufio.NewScanner(os.Stdin)
			for {
				fmt.Print(promptColor.Sprint("You: "))
				if !scanner.Scan() {
					return scanner.Err()
				}
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}

				if strings.HasPrefix(line, "/") {
					if done := chatCommand(ctx, ag, line); done {
						return nil
					}
					continue
				}

				ans := ag.Ask(ctx, line)
				if showReasoning {
					printReasoning(ans.Traces)
				}
				printAnswer(ans)
				fmt.Println()
			}
		},
	}
	cmd.Flags().BoolVar(&showReasoning, "reasoning", false, "print the reasoning steps after each answer")
	return cmd
}

// chatCommand handles a slash command and reports whether the chat should end.
func chatCommand(ctx context.Context, ag *agent.Agent, line string) bool {
	fields := strings.Fields(line)
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}

	switch fields[0] {
	case "/exit", "/quit":
		return true
	case "/clear":
		ag.ClearMemory()
		fmt.Println(dimColor.Sprint("Conversation cleared."))
	case "/summary":
		fmt.Println(ag.MemorySummary())
	case "/model":
		if err := ag.SetModel(ctx, arg); err != nil {
			fmt.Println(errorColor.Sprint(err))
			return false
		}
		fmt.Println(dimColor.Sprintf("Model: %s", ag.Model()))
	case "/temp":
		v, err := strconv.ParseFloat(arg, 64)
		if err == nil {
			err = ag.UpdateSettings(&v, nil)
		}
		if err != nil {
			fmt.Println(errorColor.Sprint(err))
		}
	case "/topk":
		v, err := strconv.Atoi(arg)
		if err == nil {
			err = ag.UpdateSettings(nil, &v)
		}
		if err != nil {
			fmt.Println(errorColor.Sprint(err))
		}
	default:
		fmt.Println(errorColor.Sprintf("Unknown command %s", fields[0]))
	}
	return false
}

func serveCmd() *cobra.Command {
	var watchPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the agent over websocket with HTTP and gRPC health checks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ag, a, err := buildAgent(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			srv, err := server.New(server.Config{
				Agent:    ag,
				Addr:     cfg.Server.Addr,
				GRPCAddr: cfg.Server.GRPCAddr,
			})
			if err != nil {
				return err
			}

			if watchPath != "" {
				results, err := ag.Watch(ctx, watchPath, 0)
				if err != nil {
					return err
				}
				go func() {
					for r := range results {
						if r.Err != nil {
							log.Printf("[INGEST] Re-ingesting %s failed: %v", r.Path, r.Err)
						} else {
							log.Printf("[INGEST] Re-ingested %s: %d chunks", r.Path, r.Chunks)
						}
						srv.Refresh(ctx)
					}
				}()
			}

			return srv.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&watchPath, "watch", "", "re-ingest this document whenever it changes")
	return cmd
}

func initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the default settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(cfgPath); err == nil && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite", cfgPath)
			}
			if err := config.Save(cfgPath, config.Default()); err != nil {
				return fmt.Errorf("write %s: %w", cfgPath, err)
			}
			fmt.Printf("%s %s\n", promptColor.Sprint("Wrote"), cfgPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show what the index holds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := buildIndex(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			state, err := a.index.State(ctx)
			if err != nil {
				return err
			}
			count, err := a.index.Count(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("Index:  %s (%s)\n", headerColor.Sprint(state), cfg.IndexDir)
			fmt.Printf("Chunks: %d\n", count)
			fmt.Printf("Model:  %s, temperature %.2f, top_k %d\n", cfg.Model, cfg.Temperature, cfg.TopK)
			switch {
			case !a.index.Exists(ctx):
				fmt.Println(dimColor.Sprint("No index yet. Run `nim-rag ingest <path>` first."))
				return nil
			case !a.index.HasData(ctx):
				fmt.Println(dimColor.Sprint("The index is empty. Run `nim-rag ingest <path>` to load a document."))
				return nil
			}

			sample, err := a.index.Sample(ctx, 1)
			if err != nil {
				return err
			}
			for _, c := range sample {
				fmt.Printf("Sample: %s p.%d: %s\n", c.Source, c.Page, retrieval.Excerpt(c.Text, 200))
			}
			return nil
		},
	}
	return cmd
}
