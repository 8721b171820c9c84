// Command simulator drives a running server through the main auth flows.
// Development tool only: the otp command relies on the server echoing codes,
// which it does outside production.
package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:      "simulator",
		Usage:     "Development tool for exercising the auth API",
		Writer:    out,
		ErrWriter: out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "api-url",
				Usage:   "Backend API URL",
				EnvVars: []string{"API_URL"},
				Value:   "http://localhost:8080",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "full",
				Usage: "Register a recruiter and a job finder, post jobs, rotate and revoke sessions",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "jobs", Value: 3, Usage: "Number of postings to create"},
				},
				Action: func(c *cli.Context) error {
					return runFull(c.App.Writer, NewAPIClient(c.String("api-url")), c.Int("jobs"))
				},
			},
			{
				Name:  "otp",
				Usage: "Log in with a phone code",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "phone", Value: "+85510000000", Usage: "Phone number to log in with"},
				},
				Action: func(c *cli.Context) error {
					return runOTP(c.App.Writer, NewAPIClient(c.String("api-url")), c.String("phone"))
				},
			},
		},
	}
}

func step(out io.Writer, label string, fn func() (string, error)) error {
	fmt.Fprintf(out, "%s... ", label)
	detail, err := fn()
	if err != nil {
		fmt.Fprintf(out, "FAILED\n  Error: %v\n", err)
		return err
	}
	if detail != "" {
		fmt.Fprintf(out, "OK (%s)\n", detail)
	} else {
		fmt.Fprintln(out, "OK")
	}
	return nil
}

// expectStatus succeeds only when err is an APIError with the given status.
func expectStatus(err error, status int) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == status {
		return nil
	}
	if err == nil {
		return fmt.Errorf("expected status %d, got success", status)
	}
	return fmt.Errorf("expected status %d: %w", status, err)
}

func runFull(out io.Writer, client *APIClient, jobs int) error {
	fmt.Fprintln(out, "=== Auth Simulator: Full Flow ===")

	var recruiter, finder *AuthResponse
	if err := step(out, "Registering recruiter", func() (string, error) {
		var err error
		recruiter, err = client.RegisterUser("recruiter", "Recruiter")
		if err != nil {
			return "", err
		}
		return recruiter.User.ID, nil
	}); err != nil {
		return err
	}

	if err := step(out, "Registering job finder without a role", func() (string, error) {
		var err error
		finder, err = client.RegisterUser("finder")
		if err != nil {
			return "", err
		}
		return finder.User.ID, nil
	}); err != nil {
		return err
	}

	if err := step(out, "Listing jobs before selecting a role is refused", func() (string, error) {
		_, err := client.ListJobs(finder.AccessToken)
		return "", expectStatus(err, http.StatusForbidden)
	}); err != nil {
		return err
	}

	if err := step(out, "Selecting Job_finder and rotating", func() (string, error) {
		if err := client.SelectRoles(finder.AccessToken, "Job_finder"); err != nil {
			return "", err
		}
		tokens, err := client.Refresh(finder.RefreshToken)
		if err != nil {
			return "", err
		}
		finder.AccessToken, finder.RefreshToken = tokens.AccessToken, tokens.RefreshToken
		return fmt.Sprintf("roles: %v", tokens.Roles), nil
	}); err != nil {
		return err
	}

	for i := 1; i <= jobs; i++ {
		title := fmt.Sprintf("Simulated posting %d", i)
		if err := step(out, fmt.Sprintf("  [%d/%d] Posting job", i, jobs), func() (string, error) {
			job, err := client.CreateJob(recruiter.AccessToken, title, map[string]any{"salary": 100 * i})
			if err != nil {
				return "", err
			}
			return job.ID, nil
		}); err != nil {
			return err
		}
	}

	if err := step(out, "Job finder cannot post", func() (string, error) {
		_, err := client.CreateJob(finder.AccessToken, "not allowed", nil)
		return "", expectStatus(err, http.StatusForbidden)
	}); err != nil {
		return err
	}

	if err := step(out, "Job finder lists jobs", func() (string, error) {
		list, err := client.ListJobs(finder.AccessToken)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d postings", len(list)), nil
	}); err != nil {
		return err
	}

	if err := step(out, "Replaying a consumed refresh token is refused", func() (string, error) {
		tokens, err := client.Refresh(recruiter.RefreshToken)
		if err != nil {
			return "", err
		}
		_, err = client.Refresh(recruiter.RefreshToken)
		recruiter.RefreshToken = tokens.RefreshToken
		return "", expectStatus(err, http.StatusUnauthorized)
	}); err != nil {
		return err
	}

	if err := step(out, "Logging out", func() (string, error) {
		if err := client.Logout(recruiter.RefreshToken); err != nil {
			return "", err
		}
		_, err := client.Refresh(recruiter.RefreshToken)
		return "", expectStatus(err, http.StatusUnauthorized)
	}); err != nil {
		return err
	}

	fmt.Fprintln(out, "\n=== Done ===")
	return nil
}

func runOTP(out io.Writer, client *APIClient, phone string) error {
	fmt.Fprintln(out, "=== Auth Simulator: Phone Login ===")

	var code string
	if err := step(out, "Requesting code for "+phone, func() (string, error) {
		var err error
		code, err = client.SendOTP(phone)
		if err != nil {
			return "", err
		}
		if code == "" {
			return "", errors.New("server did not echo the code; is it running in production?")
		}
		return "", nil
	}); err != nil {
		return err
	}

	return step(out, "Verifying code", func() (string, error) {
		result, err := client.VerifyOTP(phone, code)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("user %s, new: %t", result.User.ID, result.IsNewUser), nil
	})
}
