package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mewerton/universal-system/internal/adapters/mcp"
	"github.com/mewerton/universal-system/internal/core/domain"
	"github.com/mewerton/universal-system/internal/core/ports"
)

func newNamespacesCommand(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "namespaces",
		Short: "List verticals and their index state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.load(cmd.Context())
			if err != nil {
				return err
			}
			list, err := s.Catalog.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("list namespaces: %w", err)
			}
			if asJSON {
				return printJSON(cmd, list)
			}
			for _, ns := range list {
				state := "sem índice"
				if ns.Index.Exists {
					state = fmt.Sprintf("%d fragmentos, %d arquivos", ns.Index.Fragments, ns.Index.Files)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-18s %-24s %s\n", ns.ID, ns.Title, state)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func newIngestCommand(a *app) *cobra.Command {
	var async bool
	cmd := &cobra.Command{
		Use:   "ingest <namespace> <file.pdf>",
		Short: "Index a PDF into a vertical",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.load(cmd.Context())
			if err != nil {
				return err
			}
			f, err := os.Open(args[1])
			if err != nil {
				return fmt.Errorf("open %s: %w", args[1], err)
			}
			defer f.Close()

			out, err := s.Uploader.Upload(cmd.Context(), ports.UploadRequest{
				Namespace: args[0],
				Filename:  filepath.Base(args[1]),
				MimeType:  "application/pdf",
				Body:      f,
				Async:     async,
			})
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			switch {
			case out.Report == nil:
				fmt.Fprintf(cmd.OutOrStdout(), "documento %s enfileirado\n", out.Document.ID)
			case out.Report.Skipped:
				fmt.Fprintf(cmd.OutOrStdout(), "documento %s já indexado em %s\n", out.Document.ID, args[0])
			default:
				fmt.Fprintf(cmd.OutOrStdout(), "documento %s indexado em %s: %d fragmentos novos, %d no total\n",
					out.Document.ID, args[0], out.Report.FragmentsAdded, out.Report.FragmentsTotal)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&async, "async", false, "publish to the worker queue instead of indexing inline")
	return cmd
}

func newAskCommand(a *app) *cobra.Command {
	var showSources bool
	cmd := &cobra.Command{
		Use:   "ask <namespace> <question>",
		Short: "Ask a question grounded in a vertical's documents",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.load(cmd.Context())
			if err != nil {
				return err
			}
			namespace := args[0]
			if _, err := s.Catalog.Resolve(namespace); err != nil {
				return err
			}
			question := strings.Join(args[1:], " ")
			result, err := s.Sessions.Session("").Ask(cmd.Context(), namespace, question)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Text)
			if showSources {
				printSources(cmd, result.Sources)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showSources, "sources", false, "print the fragments used as context")
	return cmd
}

func newTablesCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tables <namespace> <out.xlsx>",
		Short: "Export a vertical's tables as a spreadsheet",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.load(cmd.Context())
			if err != nil {
				return err
			}
			f, err := os.Create(args[1])
			if err != nil {
				return fmt.Errorf("create %s: %w", args[1], err)
			}
			n, err := s.Exporter.ExportTables(cmd.Context(), args[0], f)
			if closeErr := f.Close(); err == nil {
				err = closeErr
			}
			if err != nil {
				_ = os.Remove(args[1])
				return fmt.Errorf("export tables: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d tabelas exportadas para %s\n", n, args[1])
			return nil
		},
	}
}

func newMCPCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve list_namespaces, ask_documents and ingest_document over MCP stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.load(cmd.Context())
			if err != nil {
				return err
			}
			server, err := mcp.NewServer(&mcp.Ports{
				Catalog:  s.Catalog,
				Sessions: s.Sessions,
				Uploader: s.Uploader,
			})
			if err != nil {
				return err
			}
			return server.ServeStdio()
		},
	}
}

func printSources(cmd *cobra.Command, sources []domain.RetrievedFragment) {
	if len(sources) == 0 {
		return
	}
	fmt.Fprintln(cmd.OutOrStdout())
	for i, src := range sources {
		location := src.Source
		if src.Page != "" {
			location += " p." + src.Page
		}
		fmt.Fprintf(cmd.OutOrStdout(), "[%d] %s (%s, %.3f)\n", i+1, location, src.Kind, src.Score)
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.New("failed to marshal output")
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
