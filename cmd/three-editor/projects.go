package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/huh"

	"github.com/khudiiash/three-ediitor/pkg/projectstore"
)

func runProjects(args []string) error {
	fs := flag.NewFlagSet("projects", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: three-editor projects [flags] <command> [args]\n\nCommands:\n  list             List projects, newest first\n  create [name]    Create a project (prompts when name is omitted)\n  delete <path>    Delete a project directory under the projects root\n  assets <path> [dir]\n                   List a directory under the project's assets/\n  build-assets <path>\n                   Copy assets/ into build/assets/, skipping .ts and .tsx\n\nFlags:\n")
		fs.PrintDefaults()
	}
	configPath := fs.String("config", "", "path to configuration file (default: "+defaultConfigFile+" if present)")
	envFile := fs.String("env", ".env", "path to .env file (ignored if missing)")
	yes := fs.Bool("yes", false, "skip the delete confirmation")
	_ = fs.Parse(args)

	if err := loadDotEnv(*envFile); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	log, err := newLogger(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}

	store, err := projectstore.New(cfg.ProjectsDir, projectstore.WithLogger(log))
	if err != nil {
		return err
	}

	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return errors.New("missing projects command")
	}

	switch rest[0] {
	case "list":
		projects, err := store.List()
		if err != nil {
			return err
		}
		printProjects(os.Stdout, projects)
		return nil

	case "create":
		name := ""
		if len(rest) > 1 {
			name = rest[1]
		} else if name, err = promptName(); err != nil {
			return err
		}

		p, err := store.Create(name)
		if err != nil {
			return err
		}
		fmt.Printf("Created %s\n", p.Path)
		return nil

	case "delete":
		if len(rest) < 2 {
			return errors.New("delete: project path is required")
		}
		path := resolveProjectPath(store.Root(), rest[1])

		if !*yes {
			ok, err := confirmDelete(path)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("Aborted")
				return nil
			}
		}

		if err := store.Delete(path); err != nil {
			return err
		}
		fmt.Printf("Deleted %s\n", path)
		return nil

	case "assets":
		if len(rest) < 2 {
			return errors.New("assets: project path is required")
		}
		dir := ""
		if len(rest) > 2 {
			dir = rest[2]
		}

		listing, err := store.ListAssets(resolveProjectPath(store.Root(), rest[1]), dir)
		if err != nil {
			return err
		}
		printAssets(os.Stdout, listing)
		return nil

	case "build-assets":
		if len(rest) < 2 {
			return errors.New("build-assets: project path is required")
		}
		path := resolveProjectPath(store.Root(), rest[1])

		if err := store.CopyAssetsToBuild(path); err != nil {
			return err
		}
		fmt.Printf("Copied assets into %s\n", filepath.Join(path, "build", "assets"))
		return nil

	default:
		fs.Usage()
		return fmt.Errorf("unknown projects command %q", rest[0])
	}
}

// resolveProjectPath treats a bare relative argument as a directory under the
// projects root.
func resolveProjectPath(root, arg string) string {
	if filepath.IsAbs(arg) {
		return arg
	}
	return filepath.Join(root, arg)
}

func printProjects(w io.Writer, projects []projectstore.Project) {
	if len(projects) == 0 {
		fmt.Fprintln(w, dimStyle.Render("No projects yet. Create one with: three-editor projects create"))
		return
	}

	for _, p := range projects {
		fmt.Fprintf(w, "%s  %s\n  %s\n",
			projectNameStyle.Render(p.Name),
			dimStyle.Render(p.Modified.Local().Format(time.DateTime)),
			p.Path,
		)
	}
}

func printAssets(w io.Writer, l projectstore.AssetListing) {
	if len(l.Files) == 0 && len(l.Directories) == 0 {
		fmt.Fprintln(w, dimStyle.Render("No assets"))
		return
	}

	for _, d := range l.Directories {
		fmt.Fprintln(w, projectNameStyle.Render(d+"/"))
	}
	for _, f := range l.Files {
		fmt.Fprintf(w, "%s  %s\n", f.Name, dimStyle.Render(fmt.Sprintf("%d B", f.Size)))
	}
}

func promptName() (string, error) {
	var name string

	err := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("Project name").
			Value(&name).
			Validate(func(s string) error {
				if projectstore.Slugify(s) == "" {
					return errors.New("name has no usable characters")
				}
				return nil
			}),
	)).Run()

	return name, err
}

func confirmDelete(path string) (bool, error) {
	var ok bool

	err := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(fmt.Sprintf("Delete %s?", path)).
			Description("The directory and everything in it will be removed.").
			Affirmative("Delete").
			Negative("Keep").
			Value(&ok),
	)).Run()

	return ok, err
}
