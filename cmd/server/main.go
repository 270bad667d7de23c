package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/study-assistant/assistant"
	"github.com/jrsteele09/study-assistant/auth"
	"github.com/jrsteele09/study-assistant/internal/config"
	"github.com/jrsteele09/study-assistant/server"
	"github.com/jrsteele09/study-assistant/server/authflowrepo"
	"github.com/jrsteele09/study-assistant/sessions"
	"github.com/jrsteele09/study-assistant/users"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const maintenanceInterval = 5 * time.Minute

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	for {
		if err := run(); err != nil {
			log.Err(err).Msg("Error running server, restarting")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.New()
	if err != nil {
		return err
	}
	if c.GetEnv() != "DEV" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	displayAppname(c.GetAppName())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessionRepo, closeSessions, err := newSessionRepo(ctx, c)
	if err != nil {
		return err
	}
	defer closeSessions()

	repos := auth.Repos{
		Users:    users.NewInMemoryRepo(),
		Sessions: sessionRepo,
		Codes:    auth.NewInMemoryCodeRepo(),
	}

	var completer assistant.Completer
	if c.GetGenAIAPIKey() != "" {
		genaiCompleter, err := assistant.NewGenAICompleter(ctx, c.GetGenAIAPIKey(), c.GetAssistantModel())
		if err != nil {
			return err
		}
		completer = genaiCompleter
	} else {
		log.Warn().Msg("GENAI_API_KEY not set, the assistant endpoint will return errors")
	}

	srv, err := server.New(c, repos, authflowrepo.NewInMemoryRepo(), completer)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              c.GetPort(),
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
		// Long-lived event streams end when the process is asked to stop
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return listenAndServe(httpServer)
	})
	g.Go(func() error {
		return srv.RunMaintenance(gctx, maintenanceInterval)
	})
	g.Go(func() error {
		<-gctx.Done()
		return shutdown(httpServer)
	})
	return g.Wait()
}

// newSessionRepo selects Redis when REDIS_ADDR is set and memory otherwise
func newSessionRepo(ctx context.Context, c config.Config) (sessions.Repo, func(), error) {
	if c.GetRedisAddr() == "" {
		log.Info().Msg("Using in-memory session storage")
		return sessions.NewInMemoryRepo(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{Addr: c.GetRedisAddr()})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis ping %s: %w", c.GetRedisAddr(), err)
	}
	log.Info().Str("addr", c.GetRedisAddr()).Msg("Using Redis session storage")
	return sessions.NewRedisRepo(client, "study"), func() { _ = client.Close() }, nil
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
