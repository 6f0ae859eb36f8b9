// vendctl is the operator command-line tool for VendLink Core.
//
// It talks to the VendLink Core HTTP API to register vending machines,
// watch their approval state, and manage the pending-registration queue.
// Management commands require an access token obtained with `vendctl login`
// (pass it via --token or the VENDCTL_TOKEN environment variable).
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vendlink/vendlink-core/internal/registration"
)

// Version information - set at build time via ldflags
var version = "dev"

var (
	serverURL   string
	accessToken string
)

// apiError mirrors the API's error envelope.
type apiError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "vendctl",
		Short: "vendctl - VendLink fleet operations",
		Long:  "Register vending machines, track their approval state, and manage the pending-registration queue of a VendLink Core fleet.",
	}

	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "http://localhost:8080", "VendLink Core server URL")
	rootCmd.PersistentFlags().StringVar(&accessToken, "token", os.Getenv("VENDCTL_TOKEN"), "access token for management commands")

	rootCmd.AddCommand(
		loginCmd(),
		registerCmd(),
		statusCmd(),
		watchCmd(),
		pendingCmd(),
		approveCmd(),
		rejectCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loginCmd() *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate and print an access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]string{"username": username, "password": password}

			var resp struct {
				AccessToken  string `json:"access_token"`
				RefreshToken string `json:"refresh_token"`
				ExpiresIn    int    `json:"expires_in"`
			}
			if err := apiCall(http.MethodPost, "/api/v1/auth/login", body, &resp); err != nil {
				return err
			}

			fmt.Printf("Logged in. Token valid for %ds.\n\n", resp.ExpiresIn)
			fmt.Printf("export VENDCTL_TOKEN=%s\n", resp.AccessToken)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "account username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func registerCmd() *cobra.Command {
	var req registration.Request

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register this machine with the fleet",
		Long:  "Submit a registration request. The machine stays pending until an administrator approves it; poll with `vendctl watch`.",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Status  string `json:"status"`
				Message string `json:"message"`
			}
			if err := apiCall(http.MethodPost, "/api/v1/devices/register", req, &resp); err != nil {
				return err
			}

			fmt.Printf("Status:  %s\n", resp.Status)
			fmt.Printf("Message: %s\n", resp.Message)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.HardwareID, "hardware-id", "", "machine hardware identifier")
	cmd.Flags().StringVar(&req.TenantID, "tenant", "", "operating company tenant UUID")
	cmd.Flags().StringVar(&req.IPAddress, "ip", "", "machine IP address (defaults to the connection source)")
	cmd.Flags().StringVar(&req.SystemInfo.OS, "os", runtime.GOOS, "operating system")
	cmd.Flags().StringVar(&req.SystemInfo.Version, "os-version", "", "operating system version")
	cmd.Flags().StringVar(&req.SystemInfo.Architecture, "arch", runtime.GOARCH, "CPU architecture")
	cmd.Flags().StringVar(&req.SystemInfo.Memory, "memory", "", "installed memory, e.g. 2GB")
	cmd.Flags().StringVar(&req.SystemInfo.Storage, "storage", "", "installed storage, e.g. 32GB")
	_ = cmd.MarkFlagRequired("hardware-id")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("os-version")
	_ = cmd.MarkFlagRequired("memory")
	_ = cmd.MarkFlagRequired("storage")

	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [hardware-id]",
		Short: "Show the registration state of a machine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := fetchStatus(args[0])
			if err != nil {
				return err
			}
			printStatus(result)
			return nil
		},
	}
}

func watchCmd() *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch [hardware-id]",
		Short: "Poll a machine's registration until it is decided",
		Long:  "Poll the registration state until the machine is approved or rejected, then print the outcome. Approved machines receive their device ID and command queue endpoint.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hardwareID := args[0]
			for {
				result, err := fetchStatus(hardwareID)
				if err != nil {
					return err
				}

				if result.Status != registration.StatusPending {
					printStatus(result)
					return nil
				}

				fmt.Printf("%s pending, next check in %s\n", hardwareID, interval)
				time.Sleep(interval)
			}
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 10*time.Second, "poll interval")

	return cmd
}

func pendingCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "pending",
		Aliases: []string{"ls", "list"},
		Short:   "List machines awaiting approval (oldest first)",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Devices []registration.Device `json:"devices"`
				Count   int                   `json:"count"`
			}
			if err := apiCall(http.MethodGet, "/api/v1/devices/pending", nil, &resp); err != nil {
				return err
			}

			if resp.Count == 0 {
				fmt.Println("No pending registrations.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "HARDWARE ID\tTENANT\tIP\tOS\tWAITING")
			for _, d := range resp.Devices {
				waiting := time.Since(d.CreatedAt).Round(time.Second)
				fmt.Fprintf(w, "%s\t%s\t%s\t%s %s\t%s\n",
					d.HardwareID, d.TenantID, d.IPAddress,
					d.SystemInfo.OS, d.SystemInfo.Version, waiting)
			}
			w.Flush()

			fmt.Printf("\n%d pending\n", resp.Count)
			return nil
		},
	}
}

func approveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "approve [hardware-id]",
		Short: "Approve a pending machine and provision its queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				DeviceID      string `json:"device_id"`
				QueueEndpoint string `json:"queue_endpoint"`
			}
			path := "/api/v1/devices/" + args[0] + "/approve"
			if err := apiCall(http.MethodPut, path, nil, &resp); err != nil {
				return err
			}

			fmt.Printf("Approved %s\n", args[0])
			fmt.Printf("Device ID:      %s\n", resp.DeviceID)
			fmt.Printf("Queue Endpoint: %s\n", resp.QueueEndpoint)
			return nil
		},
	}
}

func rejectCmd() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "reject [hardware-id]",
		Short: "Reject a pending machine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]string{"reason": reason}
			path := "/api/v1/devices/" + args[0] + "/reject"
			if err := apiCall(http.MethodPut, path, body, nil); err != nil {
				return err
			}

			fmt.Printf("Rejected %s: %s\n", args[0], reason)
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "why the registration is rejected (shown to the machine)")
	_ = cmd.MarkFlagRequired("reason")

	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("vendctl version %s\n", version)
		},
	}
}

func fetchStatus(hardwareID string) (*registration.StatusResult, error) {
	var result registration.StatusResult
	if err := apiCall(http.MethodGet, "/api/v1/devices/status/"+hardwareID, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func printStatus(result *registration.StatusResult) {
	fmt.Printf("Status: %s\n", result.Status)
	if result.DeviceID != "" {
		fmt.Printf("Device ID:      %s\n", result.DeviceID)
		fmt.Printf("Queue Endpoint: %s\n", result.QueueEndpoint)
	}
	if result.Message != "" {
		fmt.Printf("Message: %s\n", result.Message)
	}
}

// apiCall performs an HTTP request against the VendLink Core API, attaching
// the access token when present and decoding the JSON response into out
// (out may be nil to discard the body). Non-2xx responses are returned as
// errors using the API's error envelope.
func apiCall(method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, serverURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr apiError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("%s (%s)", apiErr.Message, apiErr.Code)
		}
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}
