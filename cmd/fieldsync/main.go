package main

import (
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"fieldsync/internal/app"
	"fieldsync/internal/config"
	"fieldsync/internal/job"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates a wired App with an initial
// connectivity probe done. The caller must defer a.Close().
func newApp(cmd *cobra.Command) (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewApp(cmd.Context(), cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	a.Sync(cmd.Context())
	return a, nil
}

// signerFromFlags builds the signer from the shared sign-off flags.
// --vacant records a vacant site; otherwise a name and a signature image
// file are required.
func signerFromFlags(cmd *cobra.Command) (job.Signer, error) {
	vacant, _ := cmd.Flags().GetBool("vacant")
	if vacant {
		return job.Vacant(), nil
	}

	name, _ := cmd.Flags().GetString("signer")
	title, _ := cmd.Flags().GetString("title")
	sigPath, _ := cmd.Flags().GetString("signature")
	if name == "" || sigPath == "" {
		return job.Signer{}, fmt.Errorf("either --vacant or both --signer and --signature are required")
	}

	sig, err := os.ReadFile(sigPath)
	if err != nil {
		return job.Signer{}, fmt.Errorf("reading signature image: %w", err)
	}
	return job.Signed(name, title, sig), nil
}

func signerFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("vacant", false, "Record a vacant-site sign-off (no customer present)")
	cmd.Flags().String("signer", "", "Name of the on-site signer")
	cmd.Flags().String("title", "", "Title of the on-site signer")
	cmd.Flags().String("signature", "", "Path to the signature image (PNG or JPEG)")
}

var rootCmd = &cobra.Command{
	Use:   "fieldsync",
	Short: "Offline-first field job execution",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init BACKEND_URL",
	Short: "Initialize configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		deviceID := uuid.New().String()
		cfg := config.NewConfig(deviceID, defaults["base_dir"], args[0])

		fmt.Print("API token (leave empty for none): ")
		token, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("reading token: %w", err)
		}
		cfg.Backend.Token = strings.TrimSpace(string(token))

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Device ID: %s\n", deviceID)
		fmt.Printf("Base Dir:  %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Device ID:   %s\n", cfg.DeviceID)
		fmt.Printf("Base Dir:    %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:     %s\n", cfg.LogDir)
		fmt.Printf("Backend URL: %s\n", cfg.Backend.BaseURL)
		return nil
	},
}

// job command
var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Manage jobs",
}

var jobShowCmd = &cobra.Command{
	Use:   "show JOB_ID",
	Short: "Show a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		j, err := a.Service().Job(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printJob(j)
		return nil
	},
}

var jobStartCmd = &cobra.Command{
	Use:   "start JOB_ID",
	Short: "Start a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		signer, err := signerFromFlags(cmd)
		if err != nil {
			return err
		}
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Service().StartJob(cmd.Context(), args[0], signer); err != nil {
			return err
		}
		fmt.Printf("Job %s started\n", args[0])
		return nil
	},
}

var jobPauseCmd = &cobra.Command{
	Use:   "pause JOB_ID",
	Short: "Pause a job's timer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		signer, err := signerFromFlags(cmd)
		if err != nil {
			return err
		}
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Service().PauseJob(cmd.Context(), args[0], signer); err != nil {
			return err
		}
		fmt.Printf("Job %s paused\n", args[0])
		return nil
	},
}

var jobResumeCmd = &cobra.Command{
	Use:   "resume JOB_ID",
	Short: "Resume a paused job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		signer, err := signerFromFlags(cmd)
		if err != nil {
			return err
		}
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Service().ResumeJob(cmd.Context(), args[0], signer); err != nil {
			return err
		}
		fmt.Printf("Job %s resumed\n", args[0])
		return nil
	},
}

var jobCompleteCmd = &cobra.Command{
	Use:   "complete JOB_ID",
	Short: "Complete a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		signer, err := signerFromFlags(cmd)
		if err != nil {
			return err
		}
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Service().CompleteJob(cmd.Context(), args[0], signer); err != nil {
			return err
		}
		fmt.Printf("Job %s completed\n", args[0])
		return nil
	},
}

var jobTimeCmd = &cobra.Command{
	Use:   "time JOB_ID",
	Short: "Show tracked work time",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reconcile, _ := cmd.Flags().GetBool("reconcile")

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if reconcile {
			if err := a.Service().ReconcileTime(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("reconciling time: %w", err)
			}
		}

		tracker, err := a.Service().Tracker(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		state := "paused"
		if tracker.Active() {
			state = "active"
		}
		fmt.Printf("%s  (%s)\n", formatDuration(tracker.Elapsed()), state)
		return nil
	},
}

// item command
var itemCmd = &cobra.Command{
	Use:   "item",
	Short: "Manage line items",
}

var itemToggleCmd = &cobra.Command{
	Use:   "toggle JOB_ID DOOR_ID ITEM_ID",
	Short: "Toggle a line item's completion",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Service().ToggleLineItem(cmd.Context(), args[0], args[1], args[2]); err != nil {
			return err
		}

		j, err := a.Service().Job(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		item := j.Door(args[1]).Item(args[2])
		fmt.Printf("Item %s: %s\n", args[2], checkbox(item.Completed))
		return nil
	},
}

// door command
var doorCmd = &cobra.Command{
	Use:   "door",
	Short: "Manage doors",
}

var doorCompleteCmd = &cobra.Command{
	Use:   "complete JOB_ID DOOR_ID",
	Short: "Sign off a door",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		signer, err := signerFromFlags(cmd)
		if err != nil {
			return err
		}
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Service().CompleteDoor(cmd.Context(), args[0], args[1], signer); err != nil {
			return err
		}
		fmt.Printf("Door %s signed off\n", args[1])
		return nil
	},
}

// media command
var mediaCmd = &cobra.Command{
	Use:   "media",
	Short: "Capture door media",
}

var mediaPhotoCmd = &cobra.Command{
	Use:   "photo JOB_ID DOOR_ID FILE",
	Short: "Attach a door photo",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[2])
		if err != nil {
			return fmt.Errorf("reading photo: %w", err)
		}

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Service().CapturePhoto(cmd.Context(), args[0], args[1], data); err != nil {
			return err
		}

		if n, err := a.Service().PendingCount(); err == nil && n > 0 {
			fmt.Printf("Photo queued for upload (%d pending)\n", n)
		} else {
			fmt.Println("Photo uploaded")
		}
		return nil
	},
}

var mediaVideoCmd = &cobra.Command{
	Use:   "video JOB_ID DOOR_ID FILE",
	Short: "Attach a door video (requires connectivity)",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[2])
		if err != nil {
			return fmt.Errorf("reading video: %w", err)
		}

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Service().CaptureVideo(cmd.Context(), args[0], args[1], data); err != nil {
			return err
		}
		fmt.Println("Video uploaded")
		return nil
	},
}

// sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Probe connectivity and replay pending changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if !a.Online() {
			fmt.Println("Backend unreachable; changes remain queued.")
			return nil
		}

		result, err := a.Service().FlushQueue(cmd.Context())
		if err != nil {
			return fmt.Errorf("flushing queue: %w", err)
		}
		fmt.Printf("Applied %d, discarded %d, %d remaining\n",
			result.Applied, result.Discarded, result.Remaining)
		return nil
	},
}

// queue command
var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect the offline queue",
}

var queueStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List pending changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		changes, err := a.Service().PendingChanges()
		if err != nil {
			return err
		}

		if len(changes) == 0 {
			fmt.Println("Queue is empty.")
			return nil
		}

		for _, c := range changes {
			retry := ""
			if c.AttemptCount > 0 {
				retry = fmt.Sprintf("  attempts:%d  next:%s",
					c.AttemptCount, c.NotBefore.Format("15:04:05"))
			}
			fmt.Printf("#%d  %-16s  %s%s\n",
				c.Seq, c.Type, c.CreatedAt.Format("2006-01-02 15:04:05"), retry)
		}
		return nil
	},
}

// cache command
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage cached job snapshots",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop all cached snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Service().ClearCache(); err != nil {
			return err
		}
		fmt.Println("Cache cleared. Queued changes are unaffected.")
		return nil
	},
}

func printJob(j *job.Job) {
	fmt.Printf("Job %s  %s\n", j.ID, j.Site)
	fmt.Printf("Status: %s  Timer: %s  Confirmed: %dm\n", j.Status, j.TimingStatus, j.ConfirmedMinutes)
	for _, d := range j.Doors {
		fmt.Printf("\nDoor %d (%s) %s\n", d.DoorNumber, d.ID, checkbox(d.Completed))
		for _, it := range d.LineItems {
			fmt.Printf("  %s %s (%s)\n", checkbox(it.Completed), it.Description, it.ID)
		}
		fmt.Printf("  photo: %s  video: %s\n", mediaState(d.PhotoInfo), mediaState(d.VideoInfo))
		if d.Signature != nil {
			if d.Signature.Kind == job.SignerVacant {
				fmt.Println("  signed off: vacant site")
			} else {
				fmt.Printf("  signed off by %s\n", d.Signature.Name)
			}
		}
	}
}

func mediaState(info *job.MediaInfo) string {
	switch {
	case info == nil:
		return "missing"
	case info.Placeholder:
		return "pending upload"
	default:
		return "uploaded"
	}
}

func checkbox(done bool) string {
	if done {
		return "[x]"
	}
	return "[ ]"
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// job subcommands
	jobCmd.AddCommand(jobShowCmd)
	jobCmd.AddCommand(jobStartCmd)
	jobCmd.AddCommand(jobPauseCmd)
	jobCmd.AddCommand(jobResumeCmd)
	jobCmd.AddCommand(jobCompleteCmd)
	jobCmd.AddCommand(jobTimeCmd)
	jobTimeCmd.Flags().Bool("reconcile", false, "Replace local minutes with the server's record")
	for _, c := range []*cobra.Command{jobStartCmd, jobPauseCmd, jobResumeCmd, jobCompleteCmd} {
		signerFlags(c)
	}

	// item / door subcommands
	itemCmd.AddCommand(itemToggleCmd)
	doorCmd.AddCommand(doorCompleteCmd)
	signerFlags(doorCompleteCmd)

	// media subcommands
	mediaCmd.AddCommand(mediaPhotoCmd)
	mediaCmd.AddCommand(mediaVideoCmd)

	// queue / cache subcommands
	queueCmd.AddCommand(queueStatusCmd)
	cacheCmd.AddCommand(cacheClearCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(jobCmd)
	rootCmd.AddCommand(itemCmd)
	rootCmd.AddCommand(doorCmd)
	rootCmd.AddCommand(mediaCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(cacheCmd)
}
