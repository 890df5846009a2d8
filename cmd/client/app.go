package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/gurkanbulca/tasktracker/internal/config"
	"github.com/gurkanbulca/tasktracker/internal/identity"
	"github.com/gurkanbulca/tasktracker/internal/remote"
	"github.com/gurkanbulca/tasktracker/internal/repository"
	"github.com/gurkanbulca/tasktracker/internal/service"
)

var errNotLoggedIn = errors.New("not logged in, run `tasktracker login` first")

// app is one CLI invocation's connection to the backend.
type app struct {
	cfg     *config.Config
	logger  *log.Logger
	conn    *grpc.ClientConn
	auth    *remote.AuthClient
	session *identity.Session
	tasks   *service.TaskService
}

// openApp connects to the server and resumes the saved session if there is
// one for the same server.
func openApp(ctx context.Context, cfg *config.Config, logger *log.Logger) (*app, error) {
	conn, err := grpc.NewClient(cfg.Client.ServerAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.Client.ServerAddr, err)
	}

	a := &app{
		cfg:    cfg,
		logger: logger,
		conn:   conn,
		auth:   remote.NewAuthClient(conn),
	}
	a.session = identity.NewSession(a.auth)

	if err := a.resume(ctx); err != nil {
		a.close()
		return nil, err
	}

	docs := remote.NewDocumentClient(conn, remote.WithSession(a.auth), remote.WithLogger(logger))
	a.tasks, err = service.NewTaskService(context.Background(), a.session,
		repository.NewTaskStore(docs, logger),
		service.WithLogger(logger),
		service.WithOptimisticReset(cfg.Client.OptimisticReset),
		service.WithResetTimeout(cfg.Client.ResetTimeout),
	)
	if err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) resume(ctx context.Context) error {
	saved, err := loadSession(a.cfg.Client.SessionFile)
	if err != nil {
		return err
	}
	if saved.RefreshToken == "" || saved.Server != a.cfg.Client.ServerAddr {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Client.RequestTimeout)
	defer cancel()
	if _, err := a.auth.Resume(ctx, saved.RefreshToken); err != nil {
		if errors.Is(err, remote.ErrSessionExpired) {
			warnColor.Println("Your session has expired, please log in again.")
			return clearSession(a.cfg.Client.SessionFile)
		}
		return fmt.Errorf("resume session: %w", err)
	}
	return nil
}

// requireUser fails unless someone is signed in.
func (a *app) requireUser() error {
	if a.session.Current() == nil {
		return errNotLoggedIn
	}
	return nil
}

// waitTasks blocks until the signed-in user's tasks have arrived.
func (a *app) waitTasks(ctx context.Context) error {
	if err := a.requireUser(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Client.RequestTimeout)
	defer cancel()
	if err := a.tasks.WaitLoaded(ctx); err != nil {
		return fmt.Errorf("load tasks: %w", err)
	}
	return nil
}

// persist stores the current refresh token, which rotates on every renewal,
// or removes the session file after a sign-out.
func (a *app) persist() error {
	user := a.auth.Identity()
	if user == nil {
		return clearSession(a.cfg.Client.SessionFile)
	}
	return saveSession(a.cfg.Client.SessionFile, savedSession{
		Server:       a.cfg.Client.ServerAddr,
		UserID:       user.ID,
		Email:        user.Email,
		RefreshToken: a.auth.Tokens().RefreshToken,
	})
}

func (a *app) close() {
	if a.tasks != nil {
		a.tasks.Close()
		if err := a.persist(); err != nil {
			a.logger.Printf("[client] %v", err)
		}
	}
	a.session.Close()
	if err := a.conn.Close(); err != nil {
		a.logger.Printf("[client] close connection: %v", err)
	}
}
