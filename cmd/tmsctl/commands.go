package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"infinitetms/internal/assistant"
	"infinitetms/internal/client"
	"infinitetms/internal/models"
	"infinitetms/internal/session"
)

var (
	loginEmail    string
	loginPassword string

	ticketsView   string
	ticketsStatus string
	ticketsGroup  bool

	createDesc     string
	createMonth    string
	createYear     int
	createAssignee int64

	statusVersion int64

	updateScreenshot string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and store the session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()
		password := loginPassword
		if password == "" {
			password = os.Getenv("TMS_PASSWORD")
		}
		if password == "" {
			fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && err != io.EOF {
				return err
			}
			password = strings.TrimSpace(line)
		}
		st, err := a.session.Login(cmd.Context(), loginEmail, password)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (%s)\n", displayName(st.User), st.User.Role)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Revoke the session and forget it locally",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()
		if _, err := a.session.Restore(cmd.Context()); err != nil {
			return err
		}
		if err := a.session.Logout(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user and what they may do",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
		me, err := a.api.Me(ctx)
		if err != nil {
			return err
		}
		w := os.Stdout
		fmt.Fprintf(w, "%s <%s>\nrole: %s\n", displayName(me.User), me.User.Email, me.User.Role)
		if me.User.Department != "" {
			fmt.Fprintf(w, "department: %s\n", me.User.Department)
		}
		if me.Capabilities.TeamManagement {
			fmt.Fprintln(w, "team management: yes")
		}
		return nil
	}),
}

var ticketsCmd = &cobra.Command{
	Use:   "tickets",
	Short: "List tickets",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
		if ticketsGroup {
			groups, err := a.api.MyTicketsByPeriod(ctx)
			if err != nil {
				return err
			}
			for _, g := range groups {
				fmt.Fprintf(os.Stdout, "== %s ==\n", g.Period)
				printTickets(os.Stdout, g.Tickets)
			}
			return nil
		}
		var status models.TicketStatus
		if ticketsStatus != "" {
			s, err := models.ParseStatus(ticketsStatus)
			if err != nil {
				return err
			}
			status = s
		}
		tickets, err := a.api.ListTickets(ctx, ticketsView, status)
		if err != nil {
			return err
		}
		printTickets(os.Stdout, tickets)
		return nil
	}),
}

var createCmd = &cobra.Command{
	Use:   "create TITLE",
	Short: "Create a ticket",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		in := client.NewTicket{Title: args[0], Description: createDesc, Month: createMonth, Year: createYear}
		if createAssignee > 0 {
			in.Assignee = &createAssignee
		}
		t, err := a.api.CreateTicket(ctx, in)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Created ticket #%d (%s)\n", t.ID, t.Status)
		return nil
	}),
}

var claimCmd = &cobra.Command{
	Use:   "claim ID",
	Short: "Take a ticket from the pool",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		t, err := a.api.ClaimTicket(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Ticket #%d is yours, now %s\n", t.ID, t.Status)
		return nil
	}),
}

var statusCmd = &cobra.Command{
	Use:   "status ID STATUS",
	Short: "Move a ticket to OPEN, IN_PROGRESS, REVIEW or COMPLETED",
	Args:  cobra.ExactArgs(2),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		status, err := models.ParseStatus(args[1])
		if err != nil {
			return err
		}
		var version *int64
		if statusVersion > 0 {
			version = &statusVersion
		}
		t, err := a.api.UpdateStatus(ctx, id, status, version)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Ticket #%d is %s (version %d)\n", t.ID, t.Status, t.Version)
		return nil
	}),
}

var updateCmd = &cobra.Command{
	Use:   "update ID TEXT",
	Short: "Post a progress update, optionally with a screenshot",
	Args:  cobra.ExactArgs(2),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		var (
			shot io.Reader
			name string
		)
		if updateScreenshot != "" {
			f, err := os.Open(updateScreenshot)
			if err != nil {
				return err
			}
			defer f.Close()
			shot, name = f, filepath.Base(updateScreenshot)
		}
		u, t, err := a.api.PostUpdate(ctx, id, args[1], name, shot)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Update #%d posted; ticket #%d is %s\n", u.ID, t.ID, t.Status)
		return nil
	}),
}

var summaryCmd = &cobra.Command{
	Use:   "summary ID",
	Short: "Ask the assistant to summarise a ticket",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		s, err := a.api.Summary(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, s)
		return nil
	}),
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the assistant; one message per line, EOF to quit",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
		var history []assistant.Message
		in := bufio.NewScanner(os.Stdin)
		for {
			fmt.Fprint(os.Stdout, "> ")
			if !in.Scan() {
				fmt.Fprintln(os.Stdout)
				return in.Err()
			}
			msg := strings.TrimSpace(in.Text())
			if msg == "" {
				continue
			}
			reply, err := a.api.Chat(ctx, msg, history)
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, reply)
			history = append(history,
				assistant.Message{Role: "user", Content: msg},
				assistant.Message{Role: "assistant", Content: reply})
		}
	}),
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stay signed in, renewing the access token until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		signedOut := make(chan struct{})
		var once sync.Once
		a, err := newApp(session.WithOnChange(func(st *session.State) {
			if st == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "session ended")
				once.Do(func() { close(signedOut) })
				return
			}
			fmt.Fprintf(cmd.OutOrStdout(), "session active for %s\n", st.User.Email)
		}))
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.signedIn(cmd.Context()); err != nil {
			return err
		}
		select {
		case <-cmd.Context().Done():
		case <-signedOut:
		}
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "account email")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "password (default $TMS_PASSWORD or prompt)")
	_ = loginCmd.MarkFlagRequired("email")

	ticketsCmd.Flags().StringVar(&ticketsView, "view", "", "pool, mine or all (default depends on role)")
	ticketsCmd.Flags().StringVar(&ticketsStatus, "status", "", "only tickets in this status")
	ticketsCmd.Flags().BoolVar(&ticketsGroup, "group", false, "group my tickets by month")

	createCmd.Flags().StringVar(&createDesc, "description", "", "ticket description")
	createCmd.Flags().StringVar(&createMonth, "month", "", "reporting month (default current)")
	createCmd.Flags().IntVar(&createYear, "year", 0, "reporting year (default current)")
	createCmd.Flags().Int64Var(&createAssignee, "assignee", 0, "assignee user id")

	statusCmd.Flags().Int64Var(&statusVersion, "version", 0, "only apply if the ticket is at this version")

	updateCmd.Flags().StringVar(&updateScreenshot, "screenshot", "", "image file to attach")

	rootCmd.AddCommand(loginCmd, logoutCmd, whoamiCmd, ticketsCmd, createCmd, claimCmd,
		statusCmd, updateCmd, summaryCmd, chatCmd, watchCmd)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(s, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid ticket id %q", s)
	}
	return id, nil
}

func displayName(u models.User) string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

func printTickets(w io.Writer, tickets []models.Ticket) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tPERIOD\tASSIGNEE\tTITLE")
	for _, t := range tickets {
		assignee := "-"
		switch {
		case t.AssigneeName != "":
			assignee = t.AssigneeName
		case t.AssigneeID != nil:
			assignee = "#" + strconv.FormatInt(*t.AssigneeID, 10)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", t.ID, t.Status, t.Period(), assignee, t.Title)
	}
	_ = tw.Flush()
}
