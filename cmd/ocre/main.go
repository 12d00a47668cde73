package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/project-ocre/ocre/pkg/client"
	"github.com/project-ocre/ocre/pkg/ipc"
	"github.com/project-ocre/ocre/pkg/log"
	"github.com/project-ocre/ocre/pkg/runtime"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "ocre",
	Short:   "ocre - talk to a running ocred",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("ocre version %s (%s)\n", Version, Commit))

	rootCmd.PersistentFlags().String("socket", "/run/ocre/ocred.sock", "Unix domain socket ocred is listening on")
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level (debug, info, warn, error)")

	cobra.OnInitialize(func() {
		level, _ := rootCmd.PersistentFlags().GetString("log-level")
		log.Init(log.Config{Level: log.Level(level)})
	})

	rootCmd.AddCommand(containerCmd, imageCmd)

	containerCmd.AddCommand(
		containerCreateCmd, containerRunCmd, containerStartCmd,
		containerStopCmd, containerKillCmd, containerPauseCmd, containerUnpauseCmd,
		containerWaitCmd, containerPsCmd, containerRmCmd,
	)
	imageCmd.AddCommand(imageLsCmd, imagePullCmd, imageRmCmd)
}

func newClient(cmd *cobra.Command) *client.Client {
	socket, _ := cmd.Flags().GetString("socket")
	return client.New(socket)
}

var containerCmd = &cobra.Command{
	Use:   "container",
	Short: "Manage containers",
}

func parseMountFlags(raw []string) ([]ipc.MountArg, error) {
	mounts, err := runtime.ParseMounts(raw)
	if err != nil {
		return nil, err
	}
	out := make([]ipc.MountArg, 0, len(mounts))
	for _, m := range mounts {
		out = append(out, ipc.MountArg{Source: m.Source, Destination: m.Destination})
	}
	return out, nil
}

func buildCreateArgs(cmd *cobra.Command, image string, argv []string) (ipc.CreateContainerArgs, error) {
	runtimeName, _ := cmd.Flags().GetString("runtime")
	id, _ := cmd.Flags().GetString("name")
	detached, _ := cmd.Flags().GetBool("detach")
	env, _ := cmd.Flags().GetStringSlice("env")
	caps, _ := cmd.Flags().GetStringSlice("cap")
	rawMounts, _ := cmd.Flags().GetStringSlice("mount")
	stackSize, _ := cmd.Flags().GetUint32("stack-size")
	heapSize, _ := cmd.Flags().GetUint32("heap-size")

	mounts, err := parseMountFlags(rawMounts)
	if err != nil {
		return ipc.CreateContainerArgs{}, err
	}

	args := ipc.CreateContainerArgs{
		Image:        image,
		Detached:     detached,
		Argv:         argv,
		Envp:         env,
		Capabilities: caps,
		Mounts:       mounts,
		StackSize:    stackSize,
		HeapSize:     heapSize,
	}
	if runtimeName != "" {
		args.Runtime = &runtimeName
	}
	if id != "" {
		args.ID = &id
	}
	return args, nil
}

func addCreateFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("runtime", "r", "", "Runtime engine to use (default: wazero/wasip1)")
	cmd.Flags().StringP("name", "n", "", "Container ID (default: generated)")
	cmd.Flags().BoolP("detach", "d", false, "Run in the background")
	cmd.Flags().StringSliceP("env", "e", nil, "Environment variables as KEY=VALUE")
	cmd.Flags().StringSliceP("cap", "k", nil, "Capabilities to grant, e.g. filesystem, gpio, sensor, messaging")
	cmd.Flags().StringSliceP("mount", "v", nil, "Bind mounts as SOURCE:DESTINATION")
	cmd.Flags().Uint32("stack-size", 0, "Guest stack size override in bytes")
	cmd.Flags().Uint32("heap-size", 0, "Guest heap size override in bytes")
}

var containerCreateCmd = &cobra.Command{
	Use:   "create IMAGE [ARG...]",
	Short: "Create a container without starting it",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		createArgs, err := buildCreateArgs(cmd, args[0], args[1:])
		if err != nil {
			return err
		}
		info, err := newClient(cmd).CreateContainer(context.Background(), createArgs)
		if err != nil {
			return err
		}
		fmt.Println(info.ID)
		return nil
	},
}

var containerRunCmd = &cobra.Command{
	Use:   "run IMAGE [ARG...]",
	Short: "Create and start a container",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		createArgs, err := buildCreateArgs(cmd, args[0], args[1:])
		if err != nil {
			return err
		}
		c := newClient(cmd)
		ctx := context.Background()

		info, err := c.CreateContainer(ctx, createArgs)
		if err != nil {
			return err
		}
		if err := c.Start(ctx, info.ID); err != nil {
			return err
		}

		if createArgs.Detached {
			fmt.Println(info.ID)
			return nil
		}

		exitCode, err := c.Wait(ctx, info.ID)
		if err != nil {
			return err
		}
		if exitCode != 0 {
			os.Exit(exitCode)
		}
		return nil
	},
}

var containerStartCmd = &cobra.Command{
	Use:   "start ID",
	Short: "Start a created or stopped container",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return newClient(cmd).Start(context.Background(), args[0])
	},
}

var containerStopCmd = &cobra.Command{
	Use:   "stop ID",
	Short: "Gracefully stop a running container",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return newClient(cmd).Stop(context.Background(), args[0])
	},
}

var containerKillCmd = &cobra.Command{
	Use:   "kill ID",
	Short: "Forcibly terminate a running container",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return newClient(cmd).Kill(context.Background(), args[0])
	},
}

var containerPauseCmd = &cobra.Command{
	Use:   "pause ID",
	Short: "Suspend a running container",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return newClient(cmd).Pause(context.Background(), args[0])
	},
}

var containerUnpauseCmd = &cobra.Command{
	Use:   "unpause ID",
	Short: "Resume a paused container",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return newClient(cmd).Unpause(context.Background(), args[0])
	},
}

var containerWaitCmd = &cobra.Command{
	Use:   "wait ID",
	Short: "Block until a container exits and print its exit code",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		exitCode, err := newClient(cmd).Wait(context.Background(), args[0])
		if err != nil {
			return err
		}
		fmt.Println(exitCode)
		return nil
	},
}

var containerRmCmd = &cobra.Command{
	Use:   "rm ID",
	Short: "Remove a container",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return newClient(cmd).RemoveContainer(context.Background(), args[0])
	},
}

var containerPsCmd = &cobra.Command{
	Use:   "ps",
	Short: "List containers",
	RunE: func(cmd *cobra.Command, args []string) error {
		infos, err := newClient(cmd).ListContainers(context.Background())
		if err != nil {
			return err
		}
		fmt.Printf("%-10s  %-20s  %-10s  %s\n", "ID", "IMAGE", "STATUS", "DETACHED")
		for _, info := range infos {
			fmt.Printf("%-10s  %-20s  %-10s  %v\n", info.ID, info.Image, info.Status, info.Detached)
		}
		return nil
	},
}

var imageCmd = &cobra.Command{
	Use:   "image",
	Short: "Manage images",
}

var imageLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List images",
	RunE: func(cmd *cobra.Command, args []string) error {
		infos, err := newClient(cmd).ListImages(context.Background())
		if err != nil {
			return err
		}
		fmt.Printf("%-30s  %s\n", "NAME", "SIZE")
		for _, info := range infos {
			fmt.Printf("%-30s  %d\n", info.Name, info.Size)
		}
		return nil
	},
}

var imagePullCmd = &cobra.Command{
	Use:   "pull NAME SOURCE_PATH",
	Short: "Install a WASM module from a local path under NAME",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return newClient(cmd).PullImage(context.Background(), args[0], args[1])
	},
}

var imageRmCmd = &cobra.Command{
	Use:   "rm NAME",
	Short: "Remove an image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return newClient(cmd).RemoveImage(context.Background(), args[0])
	},
}
