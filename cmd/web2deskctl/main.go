package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"web2desk/pkg/github"
	"web2desk/pkg/target"
	"web2desk/services/generator"
	"web2desk/services/workflows"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "web2deskctl",
		Short:         "Utility for managing web2desk workflows and project scaffolds",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newWorkflowsCommand())
	cmd.AddCommand(newProjectsCommand())
	return cmd
}

func newWorkflowsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflows",
		Short: "Build-workflow rendering and repository sync",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newWorkflowsRenderCommand())
	cmd.AddCommand(newWorkflowsSyncCommand())
	return cmd
}

func newWorkflowsRenderCommand() *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render all build workflows to a directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return err
			}
			for _, pair := range target.Pairs() {
				def, err := workflows.Synthesize(pair.Framework, pair.OS)
				if err != nil {
					return err
				}
				path := filepath.Join(outDir, def.FileName)
				if err := os.WriteFile(path, def.Content, 0o644); err != nil {
					return err
				}
				fmt.Fprintf(os.Stdout, "wrote %s\n", path)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&outDir, "out", "", "Destination directory for the workflow files")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func newWorkflowsSyncCommand() *cobra.Command {
	var repo string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Commit missing build workflows to the builder repository",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			client, err := github.NewClient(os.Getenv("GITHUB_PAT"), repo)
			if err != nil {
				return err
			}
			meta, err := client.GetRepository(ctx)
			if err != nil {
				return fmt.Errorf("check repository %s: %w", client.Repo(), err)
			}
			fmt.Fprintf(os.Stdout, "syncing %s (default branch %s)\n", meta.FullName, meta.DefaultBranch)
			for _, pair := range target.Pairs() {
				def, err := workflows.Synthesize(pair.Framework, pair.OS)
				if err != nil {
					return err
				}
				_, err = client.GetWorkflow(ctx, def.FileName)
				if err == nil {
					fmt.Fprintf(os.Stdout, "exists %s\n", def.FileName)
					continue
				}
				if !errors.Is(err, github.ErrNotFound) {
					return fmt.Errorf("check %s: %w", def.FileName, err)
				}
				message := fmt.Sprintf("Add %s build workflow", def.FileName)
				if err := client.CreateWorkflowFile(ctx, def.FileName, message, def.Content); err != nil {
					return fmt.Errorf("create %s: %w", def.FileName, err)
				}
				fmt.Fprintf(os.Stdout, "created %s\n", def.FileName)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&repo, "repo", "web2desk/builder-templates", "Builder repository in owner/name form")
	return cmd
}

func newProjectsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "Project scaffold generation",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newProjectsGenerateCommand())
	return cmd
}

func newProjectsGenerateCommand() *cobra.Command {
	var (
		appName   string
		sourceURL string
		framework string
		targetOS  string
		mode      string
		output    string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a wrapper project and write the signed archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			fw, err := target.ParseFramework(framework)
			if err != nil {
				return err
			}
			osTarget, err := target.ParseOS(targetOS)
			if err != nil {
				return err
			}
			wrapperMode, err := target.ParseMode(mode)
			if err != nil {
				return err
			}
			params := generator.Params{
				AppName:   appName,
				SourceURL: sourceURL,
				Framework: fw,
				OS:        osTarget,
				Mode:      wrapperMode,
			}
			project, err := generator.Generate(params)
			if err != nil {
				return err
			}
			signer, err := generator.SignerFromEnv()
			if err != nil {
				return err
			}
			data, err := project.Archive(params, signer, time.Now())
			if err != nil {
				return err
			}
			if output == "" {
				output = project.FileName
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "wrote %s (%d files)\n", output, len(project.Files))
			return nil
		},
	}

	cmd.Flags().StringVar(&appName, "name", "", "Application display name")
	cmd.Flags().StringVar(&sourceURL, "url", "", "Web application URL to wrap")
	cmd.Flags().StringVar(&framework, "framework", "", "Wrapper framework (electron, tauri, capacitor, react-native)")
	cmd.Flags().StringVar(&targetOS, "os", "", "Target operating system (windows, macos, linux, android, ios)")
	cmd.Flags().StringVar(&mode, "mode", "", "Wrapper mode (webview or pwa)")
	cmd.Flags().StringVar(&output, "out", "", "Destination archive path (defaults to the generated file name)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("framework")
	_ = cmd.MarkFlagRequired("os")
	return cmd
}
