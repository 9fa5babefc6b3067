package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/alphabot-ai/perch/internal/avatar"
	"github.com/alphabot-ai/perch/internal/capability"
	"github.com/alphabot-ai/perch/internal/checker"
	"github.com/alphabot-ai/perch/internal/client"
	"github.com/alphabot-ai/perch/internal/config"
	httpapp "github.com/alphabot-ai/perch/internal/http"
	"github.com/alphabot-ai/perch/internal/logger"
	"github.com/alphabot-ai/perch/internal/metrics"
	"github.com/alphabot-ai/perch/internal/mint"
	"github.com/alphabot-ai/perch/internal/notify"
	"github.com/alphabot-ai/perch/internal/rate"
	"github.com/alphabot-ai/perch/internal/signer"
	"github.com/alphabot-ai/perch/internal/store/sqlite"
)

var version = "v0.1.0"

func main() {
	configFlag := &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "YAML config file",
		EnvVars: []string{"PERCH_CONFIG"},
	}

	app := &cli.App{
		Name:    "perch",
		Usage:   "Self-hosted comments with proof-of-work anti-spam",
		Version: version,
		Commands: []*cli.Command{
			{
				Name:    "serve",
				Aliases: []string{"server"},
				Usage:   "Start the comment server",
				Flags:   []cli.Flag{configFlag},
				Action:  runServer,
			},
			{
				Name:   "keygen",
				Usage:  "Print a fresh secret key",
				Action: cmdKeygen,
			},
			{
				Name:  "moderation-link",
				Usage: "Print a signed approve or reject link for a comment",
				Flags: []cli.Flag{
					configFlag,
					&cli.StringFlag{Name: "comment", Usage: "Comment ID", Required: true},
					&cli.StringFlag{Name: "action", Usage: "approve or reject", Value: capability.ActionApprove},
				},
				Action: cmdModerationLink,
			},
			{
				Name:  "post",
				Usage: "Solve a challenge and post a comment",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "url", Usage: "Comment server URL", Value: "http://localhost:8080"},
					&cli.StringFlag{Name: "page", Usage: "Page path", Required: true},
					&cli.StringFlag{Name: "name", Usage: "Display name", Required: true},
					&cli.StringFlag{Name: "email", Usage: "Email address", Required: true},
					&cli.StringFlag{Name: "text", Usage: "Comment text", Required: true},
					&cli.StringFlag{Name: "reply-to", Usage: "Parent comment ID"},
					&cli.DurationFlag{Name: "timeout", Usage: "Give up solving after this long", Value: 2 * time.Minute},
				},
				Action: cmdPost,
			},
			{
				Name:  "read",
				Usage: "Print the published comments of a page",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "url", Usage: "Comment server URL", Value: "http://localhost:8080"},
					&cli.StringFlag{Name: "page", Usage: "Page path", Required: true},
				},
				Action: cmdRead,
			},
		},
		DefaultCommand: "serve",
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// ============================================================================
// SERVER
// ============================================================================

func runServer(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	log := logger.New(cfg.Server.LogLevel, cfg.Server.LogPretty)

	secret := cfg.Security.SecretKey
	if secret == "" {
		secret, err = signer.GenerateKey()
		if err != nil {
			return err
		}
		log.Warn().Msg("no secret key configured, using a random one: pending challenges and moderation links will not survive a restart")
	}
	s, err := signer.New([]byte(secret))
	if err != nil {
		return err
	}

	m := metrics.New()
	engine := mint.New(s, mint.Options{
		Difficulty:       uint8(cfg.Antispam.Difficulty),
		ProblemsParallel: uint8(cfg.Antispam.ProblemsParallel),
		SolutionsRequire: uint8(cfg.Antispam.SolutionsRequire),
		Validity:         cfg.Antispam.Validity,
	}, mint.WithLogger(log.Module("mint")), mint.WithObserver(m))

	store, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer store.Close()

	issuer := capability.NewIssuer(s)
	deps := httpapp.Deps{
		Store:   store,
		Issuer:  issuer,
		Engine:  engine,
		Limiter: rate.NewMemory(),
		Metrics: m,
		Log:     log.Module("http"),
	}

	if cfg.Security.CheckPagesExist {
		deps.Checker = checker.New(cfg.Site.SiteURL, log.Module("checker"))
	}

	var sender notify.Sender = notify.LogSender{Log: log.Module("mail")}
	if cfg.MailEnabled() {
		sender = notify.NewSMTPSender(notify.SMTPConfig{
			Host:      cfg.Email.SMTP.Host,
			Port:      cfg.Email.SMTP.Port,
			Username:  cfg.Email.SMTP.Username,
			Password:  cfg.Email.SMTP.Password,
			StartTLS:  cfg.Email.SMTP.StartTLS,
			TLS:       cfg.Email.SMTP.TLS,
			FromName:  cfg.Email.Identity.FromName,
			FromEmail: cfg.Email.Identity.FromEmail,
		})
	}
	notifier := notify.New(sender, issuer, notify.Site{
		Name:        cfg.Site.Name,
		SiteURL:     cfg.Site.SiteURL,
		CommentsURL: cfg.Site.CommentsURL,
		AdminEmails: cfg.Site.AdminEmails,
	}, log.Module("notify"), m)
	defer notifier.Close()
	deps.Notifier = notifier

	if cfg.Avatar.Gravatar {
		deps.Avatars = avatar.New(store, cfg.Avatar.FullPixels(), log.Module("avatar"), avatar.WithRecorder(m))
	}

	server, err := httpapp.NewServer(deps, cfg)
	if err != nil {
		return fmt.Errorf("initialize server: %w", err)
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Str("version", version).Msg("perch listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-stop:
	}

	log.Info().Msg("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(ctx)
}

// ============================================================================
// ADMIN COMMANDS
// ============================================================================

func cmdKeygen(c *cli.Context) error {
	key, err := signer.GenerateKey()
	if err != nil {
		return err
	}
	fmt.Println(key)
	return nil
}

func cmdModerationLink(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if cfg.Security.SecretKey == "" {
		return errors.New("security.secret_key (PERCH_SECRET_KEY) must be set to sign links")
	}
	s, err := signer.New([]byte(cfg.Security.SecretKey))
	if err != nil {
		return err
	}
	link, err := capability.NewIssuer(s).ModerationLink(cfg.Site.CommentsURL, c.String("comment"), c.String("action"))
	if err != nil {
		return err
	}
	fmt.Println(link)
	return nil
}

// ============================================================================
// CLIENT COMMANDS
// ============================================================================

func cmdPost(c *cli.Context) error {
	d := client.Draft{
		Name:  c.String("name"),
		Email: c.String("email"),
		Text:  c.String("text"),
	}
	if replyTo := c.String("reply-to"); replyTo != "" {
		d.ReplyTo = &replyTo
	}

	ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
	defer cancel()

	start := time.Now()
	out, err := client.New(strings.TrimSuffix(c.String("url"), "/")).Post(ctx, c.String("page"), d)
	if err != nil {
		return err
	}

	state := "awaiting moderation"
	if out.Approved {
		state = "published"
	}
	fmt.Printf("✓ Posted comment %s (%s)\n", out.CommentID, state)
	fmt.Printf("  Solved in %s\n", time.Since(start).Round(time.Millisecond))
	return nil
}

func cmdRead(c *cli.Context) error {
	comments, err := client.New(strings.TrimSuffix(c.String("url"), "/")).Comments(c.Context, c.String("page"))
	if err != nil {
		return err
	}
	if len(comments) == 0 {
		fmt.Println("No comments yet")
		return nil
	}
	printComments(comments, 0)
	return nil
}

func printComments(comments []client.Comment, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, cm := range comments {
		fmt.Printf("%s[%s] %s, %s %s\n", indent, cm.ID, cm.Name, cm.Date, cm.Time)
		for _, line := range cm.Lines {
			fmt.Printf("%s  %s\n", indent, line)
		}
		printComments(cm.Replies, depth+1)
	}
}
