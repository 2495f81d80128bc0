// Package shell implements the interactive BranchLift terminal client.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/atinyakov/BranchLift/internal/lookup"
	"github.com/atinyakov/BranchLift/internal/models"
	"github.com/atinyakov/BranchLift/internal/service"
	"go.uber.org/zap"
)

const helpText = "Available commands: help, signup, login, logout, whoami, repos, add-repo <owner/name>, branches, envs, create-env <name>, rm-env <id>, exit"

// Sessions is the session behaviour the shell drives.
type Sessions interface {
	Register(ctx context.Context, name, email, password, confirmPassword string) (*models.Account, error)
	Authenticate(ctx context.Context, email, password string) (*models.Account, error)
	RestoreSession(ctx context.Context) (*models.Account, error)
	Logout(ctx context.Context) error
	Current() *models.Account
}

// Workspace is the workspace behaviour the shell drives.
type Workspace interface {
	Load(ctx context.Context) (service.Snapshot, error)
	LoadRepositories(ctx context.Context) ([]models.Repository, error)
	LoadBranches(ctx context.Context) ([]models.Branch, error)
	LoadEnvironments(ctx context.Context) ([]models.Environment, error)
	SearchRepository(ctx context.Context, query string) (*models.Repository, bool, error)
	CreateEnvironment(ctx context.Context, name string) (*models.Environment, error)
	RemoveEnvironment(ctx context.Context, id int64) (bool, error)
	Reset()
}

// Shell reads commands line by line and prints results.
type Shell struct {
	Sessions  Sessions
	Workspace Workspace
	Log       *zap.Logger

	scanner *bufio.Scanner
	out     io.Writer

	readOnce sync.Once
	lines    chan string
	quit     chan struct{}
	readErr  error
}

// New returns a Shell reading from in and writing to out.
func New(sessions Sessions, workspace Workspace, in io.Reader, out io.Writer, log *zap.Logger) *Shell {
	if log == nil {
		log = zap.NewNop()
	}
	return &Shell{
		Sessions:  sessions,
		Workspace: workspace,
		Log:       log,
		scanner:   bufio.NewScanner(in),
		out:       out,
		quit:      make(chan struct{}),
	}
}

func (s *Shell) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(s.out, format, args...)
}

// startReader feeds input lines to s.lines from a goroutine so that reads
// can be abandoned when the context ends.
func (s *Shell) startReader() {
	s.lines = make(chan string)
	go func() {
		defer close(s.lines)
		for s.scanner.Scan() {
			select {
			case s.lines <- s.scanner.Text():
			case <-s.quit:
				return
			}
		}
		s.readErr = s.scanner.Err()
	}()
}

// next returns the next input line, io.EOF at end of input, or ctx.Err()
// once ctx is done.
func (s *Shell) next(ctx context.Context) (string, error) {
	s.readOnce.Do(s.startReader)
	select {
	case line, ok := <-s.lines:
		if !ok {
			if s.readErr != nil {
				return "", s.readErr
			}
			return "", io.EOF
		}
		return line, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// prompt prints label and reads one line. End of input is io.ErrUnexpectedEOF.
func (s *Shell) prompt(ctx context.Context, label string) (string, error) {
	s.printf("%s: ", label)
	line, err := s.next(ctx)
	if errors.Is(err, io.EOF) {
		return "", io.ErrUnexpectedEOF
	}
	return line, err
}

// Run restores a previous session, then serves commands until "exit", end
// of input or ctx is done.
func (s *Shell) Run(ctx context.Context) error {
	defer close(s.quit)

	acc, err := s.Sessions.RestoreSession(ctx)
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	if acc != nil {
		if _, err := s.Workspace.Load(ctx); err != nil {
			return fmt.Errorf("load workspace: %w", err)
		}
		s.printf("Welcome back, %s\n", acc.Name)
	}

	for {
		s.printf("branchlift> ")
		line, err := s.next(ctx)
		if errors.Is(err, io.EOF) || ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return err
		}
		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}
		if args[0] == "exit" {
			s.printf("Bye\n")
			return nil
		}
		if err := s.Exec(ctx, args); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.report(err)
		}
	}
}

// Exec runs a single command.
func (s *Shell) Exec(ctx context.Context, args []string) error {
	switch args[0] {
	case "help":
		s.printf("%s\n", helpText)
	case "signup":
		return s.signup(ctx)
	case "login":
		return s.login(ctx)
	case "logout":
		if err := s.Sessions.Logout(ctx); err != nil {
			return err
		}
		s.Workspace.Reset()
		s.printf("Logged out\n")
	case "whoami":
		acc := s.Sessions.Current()
		if acc == nil {
			return service.ErrNoSession
		}
		s.printf("%s <%s>\n", acc.Name, acc.Email)
	case "repos":
		repos, err := s.Workspace.LoadRepositories(ctx)
		if err != nil {
			return err
		}
		s.table(len(repos), "ID\tNAME\tURL", func(w io.Writer, i int) {
			_, _ = fmt.Fprintf(w, "%d\t%s\t%s\n", repos[i].ID, repos[i].Name, repos[i].URL)
		})
	case "add-repo":
		if len(args) < 2 {
			s.printf("Usage: add-repo <owner/name>\n")
			return nil
		}
		repo, added, err := s.Workspace.SearchRepository(ctx, args[1])
		if err != nil {
			return err
		}
		if added {
			s.printf("Added %s\n", repo.Name)
		} else {
			s.printf("%s is already tracked\n", repo.Name)
		}
	case "branches":
		branches, err := s.Workspace.LoadBranches(ctx)
		if err != nil {
			return err
		}
		s.table(len(branches), "ID\tBRANCH\tREPOSITORY", func(w io.Writer, i int) {
			_, _ = fmt.Fprintf(w, "%d\t%s\t%s\n", branches[i].ID, branches[i].Name, branches[i].Repository)
		})
	case "envs":
		envs, err := s.Workspace.LoadEnvironments(ctx)
		if err != nil {
			return err
		}
		s.table(len(envs), "ID\tNAME\tSTATUS\tCREATED", func(w io.Writer, i int) {
			_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", envs[i].ID, envs[i].Name, envs[i].Status, envs[i].CreatedAt)
		})
	case "create-env":
		if len(args) < 2 {
			s.printf("Usage: create-env <name>\n")
			return nil
		}
		env, err := s.Workspace.CreateEnvironment(ctx, strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		s.printf("Environment %s (%d) is %s\n", env.Name, env.ID, env.Status)
	case "rm-env":
		if len(args) < 2 {
			s.printf("Usage: rm-env <id>\n")
			return nil
		}
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			s.printf("Invalid environment id %q\n", args[1])
			return nil
		}
		removed, err := s.Workspace.RemoveEnvironment(ctx, id)
		if err != nil {
			return err
		}
		if removed {
			s.printf("Environment removed\n")
		} else {
			s.printf("Environment not found\n")
		}
	default:
		s.printf("Unknown command. Type 'help' for a list of commands.\n")
	}
	return nil
}

func (s *Shell) signup(ctx context.Context) error {
	fields := []string{"Name", "Email", "Password", "Confirm password"}
	vals := make([]string, len(fields))
	for i, f := range fields {
		v, err := s.prompt(ctx, f)
		if err != nil {
			return err
		}
		vals[i] = v
	}

	if st := service.CheckPassword(vals[2]); !st.Strong() {
		s.printf("Password needs: %s\n", missing(st))
	}

	acc, err := s.Sessions.Register(ctx, vals[0], vals[1], vals[2], vals[3])
	if err != nil {
		return err
	}
	return s.started(ctx, acc)
}

func (s *Shell) login(ctx context.Context) error {
	email, err := s.prompt(ctx, "Email")
	if err != nil {
		return err
	}
	password, err := s.prompt(ctx, "Password")
	if err != nil {
		return err
	}
	acc, err := s.Sessions.Authenticate(ctx, email, password)
	if err != nil {
		return err
	}
	return s.started(ctx, acc)
}

func (s *Shell) started(ctx context.Context, acc *models.Account) error {
	if _, err := s.Workspace.Load(ctx); err != nil {
		return err
	}
	s.printf("Welcome, %s\n", acc.Name)
	return nil
}

func (s *Shell) table(n int, header string, row func(io.Writer, int)) {
	if n == 0 {
		s.printf("Nothing here yet\n")
		return
	}
	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, header)
	for i := 0; i < n; i++ {
		row(tw, i)
	}
	_ = tw.Flush()
}

// report prints a user-facing message for err. Unexpected errors are logged.
func (s *Shell) report(err error) {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		s.printf("Error: %s\n", ve.Reason)
	case errors.Is(err, service.ErrNoSession):
		s.printf("Error: login required\n")
	case errors.Is(err, service.ErrDuplicateEmail),
		errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, io.ErrUnexpectedEOF):
		s.printf("Error: %v\n", err)
	case errors.Is(err, lookup.ErrLookup):
		s.printf("Error: %v\n", lookup.ErrLookup)
	default:
		s.Log.Error("command failed", zap.Error(err))
		s.printf("Error: something went wrong\n")
	}
}

func missing(st service.PasswordStrength) string {
	var parts []string
	if !st.HasLength {
		parts = append(parts, fmt.Sprintf("at least %d characters", service.MinPasswordLength))
	}
	if !st.HasUpperCase {
		parts = append(parts, "an uppercase letter")
	}
	if !st.HasNumber {
		parts = append(parts, "a number")
	}
	return strings.Join(parts, ", ")
}
