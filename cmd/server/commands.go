package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"path/filepath"

	"github.com/katakuxiko/docquiz/internal/api"
	"github.com/katakuxiko/docquiz/internal/pdf"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:           "docquiz",
		Short:         "Turn uploaded PDFs into comprehension questions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to a YAML config file (default $DOCQUIZ_CONFIG)")

	root.AddCommand(
		newServeCmd(&cfgPath),
		newIngestCmd(&cfgPath),
		newQuestionsCmd(&cfgPath),
		newPurgeCmd(&cfgPath),
	)
	return root
}

func newServeCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := buildDeps(cmd.Context(), *cfgPath)
			if err != nil {
				return err
			}
			defer d.Close()

			h := api.NewHandler(d.rag, d.llm, d.cfg.UploadDir, int64(d.cfg.MaxUploadMB)<<20)
			app := api.NewApp(h)
			log.Printf("server started at %s (index %s on %s)", d.cfg.ServerAddr, d.cfg.Index.Name, d.cfg.Index.Backend)
			return app.Listen(d.cfg.ServerAddr)
		},
	}
}

func newIngestCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <file.pdf>",
		Short: "Extract, chunk, embed and index a PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeps(cmd.Context(), *cfgPath)
			if err != nil {
				return err
			}
			defer d.Close()

			raw, err := pdf.ExtractText(args[0])
			if err != nil {
				return err
			}
			text := pdf.Clean(raw)
			res, err := d.rag.Ingest(cmd.Context(), filepath.Base(args[0]), pdf.GuessTitle(text), text)
			if err != nil {
				return fmt.Errorf("ingest %s: %w", args[0], err)
			}
			cmd.Printf("%s: %d chunks, %d vectors stored (%s)\n", res.Filename, len(res.Chunks), res.VectorCount, res.VectorStorage)
			if res.Error != "" {
				return errors.New(res.Error)
			}
			return nil
		},
	}
}

func newQuestionsCmd(cfgPath *string) *cobra.Command {
	var (
		topic  string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "questions",
		Short: "Generate questions from the index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := buildDeps(cmd.Context(), *cfgPath)
			if err != nil {
				return err
			}
			defer d.Close()

			set := d.rag.Questions(cmd.Context(), topic)
			if asJSON {
				data, err := json.MarshalIndent(set, "", "  ")
				if err != nil {
					return err
				}
				cmd.Println(string(data))
				return nil
			}
			cmd.Printf("topic: %s, source: %s, matches: %d\n", set.Topic, set.Source, set.MatchCount)
			for i, q := range set.Questions {
				cmd.Printf("%d. %s\n", i+1, q)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&topic, "topic", "t", "", "seed retrieval with this topic")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

func newPurgeCmd(cfgPath *string) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete every document from the index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("purge is irreversible; pass --yes to confirm")
			}
			d, err := buildDeps(cmd.Context(), *cfgPath)
			if err != nil {
				return err
			}
			defer d.Close()

			res := d.rag.Purge(cmd.Context())
			if !res.Success {
				return errors.New(res.Error)
			}
			cmd.Println(res.Message)
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the purge")
	return cmd
}
