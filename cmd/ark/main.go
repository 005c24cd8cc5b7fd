package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"ark-go/internal/app"
	"ark-go/internal/archive"
	"ark-go/internal/config"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an authenticated ArkApp. The caller
// must defer a.Close(). operation identifies the CLI command being run
// (e.g. "ListContainers", "GrantAccess").
func newApp(cmd *cobra.Command, operation string) (*app.ArkApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	username, _ := cmd.Flags().GetString("username")
	token, _ := cmd.Flags().GetString("token")

	a, err := app.NewArkApp(cmd.Context(), cfg, operation, username, token)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// getContainer resolves PROJECT CONTAINER arguments.
func getContainer(ctx context.Context, a *app.ArkApp, project, name string) (*archive.Container, error) {
	p, err := a.Archive().Project(project)
	if err != nil {
		return nil, err
	}
	return p.GetContainer(ctx, name)
}

var rootCmd = &cobra.Command{
	Use:   "ark",
	Short: "Client for token-federated archive storage",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Get application defaults
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		// Create config with defaults
		cfg := config.NewConfig(defaults["base_dir"])
		if username, _ := cmd.Flags().GetString("username"); username != "" {
			cfg.Username = username
		}

		// Initialize config file
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Auth URL: %s\n", cfg.AuthURL)
		fmt.Printf("Log Dir:  %s\n", cfg.LogDir)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Get application defaults
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		// Read config
		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		// Display config
		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Username:          %s\n", cfg.Username)
		fmt.Printf("Auth URL:          %s\n", cfg.AuthURL)
		fmt.Printf("Identity Provider: %s\n", cfg.IdentityProvider)
		fmt.Printf("Provider URL:      %s\n", cfg.IdentityProviderURL)
		fmt.Printf("Password Env:      %s\n", cfg.PasswordEnv)
		fmt.Printf("Log Dir:           %s\n", cfg.LogDir)
		return nil
	},
}

// project command
var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
}

var projectLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List accessible projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "ListProjects")
		if err != nil {
			return err
		}
		defer a.Close()

		projects := a.Archive().Projects()
		if len(projects) == 0 {
			fmt.Println("No projects found.")
			return nil
		}

		names := make([]string, 0, len(projects))
		for name := range projects {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Printf("%-32s  %s\n", name, projects[name].ID())
		}
		return nil
	},
}

// container command
var containerCmd = &cobra.Command{
	Use:   "container",
	Short: "Manage containers",
}

var containerLsCmd = &cobra.Command{
	Use:   "ls PROJECT",
	Short: "List containers in a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "ListContainers")
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.Archive().Project(args[0])
		if err != nil {
			return err
		}

		containers, err := p.Containers(cmd.Context())
		if err != nil {
			return err
		}
		if len(containers) == 0 {
			fmt.Println("No containers found.")
			return nil
		}

		names := make([]string, 0, len(containers))
		for name := range containers {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	},
}

var containerCreateCmd = &cobra.Command{
	Use:   "create PROJECT NAME",
	Short: "Create a container",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		public, _ := cmd.Flags().GetBool("public")

		a, err := newApp(cmd, "CreateContainer")
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.Archive().Project(args[0])
		if err != nil {
			return err
		}

		c, err := p.CreateContainer(cmd.Context(), args[1], public)
		if err != nil {
			return fmt.Errorf("creating container: %w", err)
		}

		fmt.Printf("Created container %s\n", c)
		return nil
	},
}

var containerRmCmd = &cobra.Command{
	Use:   "rm PROJECT NAME",
	Short: "Delete a container and everything in it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "DeleteContainer")
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.Archive().Project(args[0])
		if err != nil {
			return err
		}

		if err := p.DeleteContainer(cmd.Context(), args[1]); err != nil {
			return fmt.Errorf("deleting container: %w", err)
		}
		return nil
	},
}

var aclCmd = &cobra.Command{
	Use:   "acl",
	Short: "Manage container access control",
}

var aclShowCmd = &cobra.Command{
	Use:   "show PROJECT CONTAINER",
	Short: "Show who can access a container",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		usernames, _ := cmd.Flags().GetBool("usernames")

		a, err := newApp(cmd, "AccessControl")
		if err != nil {
			return err
		}
		defer a.Close()

		c, err := getContainer(cmd.Context(), a, args[0], args[1])
		if err != nil {
			return err
		}

		acl, err := c.AccessControl(cmd.Context(), usernames)
		if err != nil {
			return err
		}

		fmt.Printf("read:  %v\n", acl.Read)
		fmt.Printf("write: %v\n", acl.Write)
		return nil
	},
}

var aclGrantCmd = &cobra.Command{
	Use:   "grant PROJECT CONTAINER USER",
	Short: "Grant a user access to a container (USER may be PUBLIC)",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, _ := cmd.Flags().GetString("mode")

		a, err := newApp(cmd, "GrantAccess")
		if err != nil {
			return err
		}
		defer a.Close()

		c, err := getContainer(cmd.Context(), a, args[0], args[1])
		if err != nil {
			return err
		}

		if err := c.GrantAccess(cmd.Context(), args[2], mode); err != nil {
			return fmt.Errorf("granting access: %w", err)
		}

		fmt.Printf("Granted %s access on %s to %s\n", mode, c, args[2])
		return nil
	},
}

var aclRevokeCmd = &cobra.Command{
	Use:   "revoke PROJECT CONTAINER USER",
	Short: "Revoke a user's access to a container (USER may be PUBLIC)",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, _ := cmd.Flags().GetString("mode")

		a, err := newApp(cmd, "RevokeAccess")
		if err != nil {
			return err
		}
		defer a.Close()

		c, err := getContainer(cmd.Context(), a, args[0], args[1])
		if err != nil {
			return err
		}

		if err := c.RevokeAccess(cmd.Context(), args[2], mode); err != nil {
			return fmt.Errorf("revoking access: %w", err)
		}

		fmt.Printf("Revoked %s access on %s from %s\n", mode, c, args[2])
		return nil
	},
}

// file command
var fileCmd = &cobra.Command{
	Use:   "file",
	Short: "Manage files in a container",
}

var fileLsCmd = &cobra.Command{
	Use:   "ls PROJECT CONTAINER",
	Short: "List files in a container",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "ListFiles")
		if err != nil {
			return err
		}
		defer a.Close()

		c, err := getContainer(cmd.Context(), a, args[0], args[1])
		if err != nil {
			return err
		}

		files, err := c.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(files) == 0 {
			fmt.Println("No files found.")
			return nil
		}

		for _, f := range files {
			fmt.Printf("%12d  %s  %s\n",
				f.Bytes,
				f.LastModified.Format("2006-01-02 15:04:05"),
				f.Name,
			)
		}
		return nil
	},
}

var filePutCmd = &cobra.Command{
	Use:   "put PROJECT CONTAINER PATH...",
	Short: "Upload local files",
	Args:  cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		remoteDir, _ := cmd.Flags().GetString("remote-dir")
		overwrite, _ := cmd.Flags().GetBool("overwrite")

		a, err := newApp(cmd, "Upload")
		if err != nil {
			return err
		}
		defer a.Close()

		c, err := getContainer(cmd.Context(), a, args[0], args[1])
		if err != nil {
			return err
		}

		created, err := c.Upload(cmd.Context(), args[2:], remoteDir, overwrite)
		if err != nil {
			return fmt.Errorf("uploading: %w", err)
		}

		for _, name := range created {
			fmt.Println(name)
		}
		fmt.Printf("Uploaded %d file(s)\n", len(created))
		return nil
	},
}

var fileGetCmd = &cobra.Command{
	Use:   "get PROJECT CONTAINER PATH",
	Short: "Download a file",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		localDir, _ := cmd.Flags().GetString("dir")
		tree, _ := cmd.Flags().GetBool("tree")
		overwrite, _ := cmd.Flags().GetBool("overwrite")

		a, err := newApp(cmd, "Download")
		if err != nil {
			return err
		}
		defer a.Close()

		c, err := getContainer(cmd.Context(), a, args[0], args[1])
		if err != nil {
			return err
		}

		local, err := c.Download(cmd.Context(), args[2], localDir, tree, overwrite)
		if err != nil {
			return fmt.Errorf("downloading: %w", err)
		}

		fmt.Println(local)
		return nil
	},
}

var fileCatCmd = &cobra.Command{
	Use:   "cat PROJECT CONTAINER PATH",
	Short: "Print a file to stdout",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "ReadFile")
		if err != nil {
			return err
		}
		defer a.Close()

		c, err := getContainer(cmd.Context(), a, args[0], args[1])
		if err != nil {
			return err
		}

		content, err := c.Read(cmd.Context(), args[2])
		if err != nil {
			return err
		}

		os.Stdout.Write(content.Bytes())
		return nil
	},
}

var fileRmCmd = &cobra.Command{
	Use:   "rm PROJECT CONTAINER PATH",
	Short: "Delete a file or a directory prefix",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		recursive, _ := cmd.Flags().GetBool("recursive")

		a, err := newApp(cmd, "DeleteFile")
		if err != nil {
			return err
		}
		defer a.Close()

		c, err := getContainer(cmd.Context(), a, args[0], args[1])
		if err != nil {
			return err
		}

		if recursive {
			err = c.DeleteDirectory(cmd.Context(), args[2])
		} else {
			err = c.Delete(cmd.Context(), args[2])
		}
		if err != nil {
			return fmt.Errorf("deleting: %w", err)
		}
		return nil
	},
}

var fileCpCmd = &cobra.Command{
	Use:   "cp PROJECT CONTAINER PATH TARGET_DIR",
	Short: "Copy a file within its container",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		newName, _ := cmd.Flags().GetString("name")
		overwrite, _ := cmd.Flags().GetBool("overwrite")

		a, err := newApp(cmd, "CopyFile")
		if err != nil {
			return err
		}
		defer a.Close()

		c, err := getContainer(cmd.Context(), a, args[0], args[1])
		if err != nil {
			return err
		}

		created, err := c.Copy(cmd.Context(), args[2], args[3], newName, overwrite)
		if err != nil {
			return fmt.Errorf("copying: %w", err)
		}

		fmt.Println(created)
		return nil
	},
}

var fileMvCmd = &cobra.Command{
	Use:   "mv PROJECT CONTAINER PATH TARGET_DIR",
	Short: "Move a file within its container",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		newName, _ := cmd.Flags().GetString("name")
		overwrite, _ := cmd.Flags().GetBool("overwrite")

		a, err := newApp(cmd, "MoveFile")
		if err != nil {
			return err
		}
		defer a.Close()

		c, err := getContainer(cmd.Context(), a, args[0], args[1])
		if err != nil {
			return err
		}

		created, err := c.Move(cmd.Context(), args[2], args[3], newName, overwrite)
		if err != nil {
			return fmt.Errorf("moving: %w", err)
		}

		fmt.Println(created)
		return nil
	},
}

// find command
var findCmd = &cobra.Command{
	Use:   "find CONTAINER",
	Short: "Locate a container across all accessible projects",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "FindContainer")
		if err != nil {
			return err
		}
		defer a.Close()

		c, err := a.Archive().FindContainer(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Println(c)
		return nil
	},
}

// public command, no authentication required
var publicCmd = &cobra.Command{
	Use:   "public",
	Short: "Access public containers anonymously",
}

var publicLsCmd = &cobra.Command{
	Use:   "ls URL",
	Short: "List files in a public container",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := archive.NewPublicContainer(args[0], nil)
		if err != nil {
			return err
		}

		files, err := p.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(files) == 0 {
			fmt.Println("No files found.")
			return nil
		}

		for _, f := range files {
			fmt.Printf("%12d  %s  %s\n",
				f.Bytes,
				f.LastModified.Format("2006-01-02 15:04:05"),
				f.Name,
			)
		}
		return nil
	},
}

var publicGetCmd = &cobra.Command{
	Use:   "get URL PATH",
	Short: "Download a file from a public container",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		localDir, _ := cmd.Flags().GetString("dir")
		tree, _ := cmd.Flags().GetBool("tree")
		overwrite, _ := cmd.Flags().GetBool("overwrite")

		p, err := archive.NewPublicContainer(args[0], nil)
		if err != nil {
			return err
		}

		local, err := p.Download(cmd.Context(), args[1], localDir, tree, overwrite)
		if err != nil {
			return fmt.Errorf("downloading: %w", err)
		}

		fmt.Println(local)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("username", "u", "", "Username (overrides config)")
	rootCmd.PersistentFlags().StringP("token", "t", "", "Pre-issued auth token (skips the password flow)")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// project subcommands
	projectCmd.AddCommand(projectLsCmd)

	// container subcommands
	containerCmd.AddCommand(containerLsCmd)
	containerCmd.AddCommand(containerCreateCmd)
	containerCreateCmd.Flags().Bool("public", false, "Make the container world-readable")
	containerCmd.AddCommand(containerRmCmd)
	containerCmd.AddCommand(aclCmd)
	aclCmd.AddCommand(aclShowCmd)
	aclShowCmd.Flags().Bool("usernames", false, "Translate user ids to usernames")
	aclCmd.AddCommand(aclGrantCmd)
	aclGrantCmd.Flags().StringP("mode", "m", "read", "Access mode: read or write")
	aclCmd.AddCommand(aclRevokeCmd)
	aclRevokeCmd.Flags().StringP("mode", "m", "read", "Access mode: read or write")

	// file subcommands
	fileCmd.AddCommand(fileLsCmd)
	fileCmd.AddCommand(filePutCmd)
	filePutCmd.Flags().String("remote-dir", "", "Remote directory prefix")
	filePutCmd.Flags().Bool("overwrite", false, "Overwrite existing remote files")
	fileCmd.AddCommand(fileGetCmd)
	fileGetCmd.Flags().StringP("dir", "d", ".", "Local directory to download into")
	fileGetCmd.Flags().Bool("tree", false, "Recreate the remote directory tree locally")
	fileGetCmd.Flags().Bool("overwrite", false, "Overwrite existing local files")
	fileCmd.AddCommand(fileCatCmd)
	fileCmd.AddCommand(fileRmCmd)
	fileRmCmd.Flags().BoolP("recursive", "r", false, "Treat PATH as a directory prefix")
	fileCmd.AddCommand(fileCpCmd)
	fileCpCmd.Flags().String("name", "", "New file name (defaults to the original)")
	fileCpCmd.Flags().Bool("overwrite", false, "Overwrite an existing target")
	fileCmd.AddCommand(fileMvCmd)
	fileMvCmd.Flags().String("name", "", "New file name (defaults to the original)")
	fileMvCmd.Flags().Bool("overwrite", false, "Overwrite an existing target")

	// public subcommands
	publicCmd.AddCommand(publicLsCmd)
	publicCmd.AddCommand(publicGetCmd)
	publicGetCmd.Flags().StringP("dir", "d", ".", "Local directory to download into")
	publicGetCmd.Flags().Bool("tree", false, "Recreate the remote directory tree locally")
	publicGetCmd.Flags().Bool("overwrite", false, "Overwrite existing local files")

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(projectCmd)
	rootCmd.AddCommand(containerCmd)
	rootCmd.AddCommand(fileCmd)
	rootCmd.AddCommand(findCmd)
	rootCmd.AddCommand(publicCmd)
}
