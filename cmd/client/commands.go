package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/gurkanbulca/tasktracker/internal/models"
	"github.com/gurkanbulca/tasktracker/internal/views"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to your account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		email, err := emailFlagOrPrompt(cmd)
		if err != nil {
			return err
		}
		password, err := prompt("Password:", true)
		if err != nil {
			return err
		}

		return withApp(cmd, func(ctx context.Context, a *app) error {
			user, err := a.session.Login(ctx, email, password)
			if err != nil {
				return err
			}
			successColor.Printf("✅ Logged in as %s\n", displayName(user))
			return nil
		})
	},
}

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		email, err := emailFlagOrPrompt(cmd)
		if err != nil {
			return err
		}
		name, _ := cmd.Flags().GetString("name")
		password, err := prompt("Password:", true)
		if err != nil {
			return err
		}
		if confirm, _ := cmd.Flags().GetBool("confirm"); confirm {
			again, err := prompt("Confirm password:", true)
			if err != nil {
				return err
			}
			if again != password {
				return errors.New("passwords do not match")
			}
		}

		return withApp(cmd, func(ctx context.Context, a *app) error {
			user, err := a.session.SignupWithName(ctx, email, password, strings.TrimSpace(name))
			if err != nil {
				return err
			}
			successColor.Printf("✅ Account created, welcome %s!\n", displayName(user))
			return nil
		})
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out and forget the saved session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			if a.session.Current() == nil {
				fmt.Println("Not logged in.")
				return nil
			}
			if err := a.session.Logout(ctx); err != nil {
				warnColor.Printf("⚠️  %v (signed out locally)\n", err)
				return nil
			}
			successColor.Println("👋 Logged out")
			return nil
		})
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			user := a.session.Current()
			if user == nil {
				return errNotLoggedIn
			}
			fmt.Printf("%s <%s>\n", displayName(user), user.Email)
			return nil
		})
	},
}

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List your tasks",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, pf, err := viewFlags(cmd)
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			if err := a.waitTasks(ctx); err != nil {
				return err
			}
			renderTasks(os.Stdout, a.tasks.View(f, pf), f, pf, a.tasks.Counts(), a.tasks.Now())
			return nil
		})
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Show your tasks and keep the list updated until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, pf, err := viewFlags(cmd)
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			if err := a.waitTasks(ctx); err != nil {
				return err
			}

			var mu sync.Mutex
			draw := func(tasks []models.Task) {
				mu.Lock()
				defer mu.Unlock()
				now := a.tasks.Now()
				fmt.Print("\033[H\033[2J")
				renderTasks(os.Stdout, views.Apply(tasks, f, pf, now), f, pf, views.Count(tasks, now), now)
				dimColor.Println("\nWatching for changes, press Ctrl+C to quit.")
			}

			stop := a.tasks.OnChange(draw)
			defer stop()
			draw(a.tasks.Tasks())

			<-ctx.Done()
			return nil
		})
	},
}

var addCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a task",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		draft := models.TaskDraft{Title: strings.Join(args, " ")}
		draft.Description, _ = cmd.Flags().GetString("description")
		draft.DueDate, _ = cmd.Flags().GetString("due")
		draft.Recurrent, _ = cmd.Flags().GetBool("daily")
		draft.Completed, _ = cmd.Flags().GetBool("done")

		priority, _ := cmd.Flags().GetString("priority")
		p, err := models.ParsePriority(priority)
		if err != nil {
			return err
		}
		draft.Priority = p

		return withApp(cmd, func(ctx context.Context, a *app) error {
			if err := a.requireUser(); err != nil {
				return err
			}
			task, err := a.tasks.AddTask(ctx, draft)
			if err != nil {
				return err
			}
			successColor.Printf("✅ Added %q (%s)\n", task.Title, shortID(task.ID))
			return nil
		})
	},
}

var doneCmd = &cobra.Command{
	Use:   "done <id>",
	Short: "Mark a task completed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return toggle(cmd, args[0], true)
	},
}

var undoCmd = &cobra.Command{
	Use:   "undo <id>",
	Short: "Mark a task open again",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return toggle(cmd, args[0], false)
	},
}

var editCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Change a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		patch, err := patchFromFlags(cmd)
		if err != nil {
			return err
		}
		if patch.IsEmpty() {
			return errors.New("nothing to change, pass at least one flag")
		}

		return withApp(cmd, func(ctx context.Context, a *app) error {
			task, err := findTask(ctx, a, args[0])
			if err != nil {
				return err
			}
			if err := a.tasks.UpdateTask(ctx, task.ID, patch); err != nil {
				return err
			}
			successColor.Printf("✅ Updated %q\n", task.Title)
			return nil
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete a task",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			task, err := findTask(ctx, a, args[0])
			if err != nil {
				return err
			}
			if err := a.tasks.DeleteTask(ctx, task.ID); err != nil {
				return err
			}
			successColor.Printf("🗑️  Deleted %q\n", task.Title)
			return nil
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{loginCmd, signupCmd} {
		c.Flags().StringP("email", "e", "", "account email")
	}
	signupCmd.Flags().String("name", "", "display name")
	signupCmd.Flags().Bool("confirm", false, "ask for the password twice")

	for _, c := range []*cobra.Command{listCmd, watchCmd} {
		c.Flags().StringP("filter", "f", "all", "all, active, completed or today")
		c.Flags().StringP("priority", "p", "all", "all, "+strings.Join(priorityNames(), ", "))
	}

	addCmd.Flags().StringP("description", "d", "", "task description")
	addCmd.Flags().String("due", "", "due date (YYYY-MM-DD)")
	addCmd.Flags().StringP("priority", "p", "none", strings.Join(priorityNames(), ", "))
	addCmd.Flags().Bool("daily", false, "reopen the task every day after it is completed")
	addCmd.Flags().Bool("done", false, "create the task already completed")

	editCmd.Flags().StringP("title", "t", "", "new title")
	editCmd.Flags().StringP("description", "d", "", "new description")
	editCmd.Flags().String("due", "", "new due date (YYYY-MM-DD), empty to clear")
	editCmd.Flags().StringP("priority", "p", "", "new priority: "+strings.Join(priorityNames(), ", "))
	editCmd.Flags().Bool("daily", false, "make the task recurring, --daily=false to stop")

	rootCmd.AddCommand(loginCmd, signupCmd, logoutCmd, whoamiCmd,
		listCmd, watchCmd, addCmd, doneCmd, undoCmd, editCmd, deleteCmd)
}

func toggle(cmd *cobra.Command, ref string, completed bool) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		task, err := findTask(ctx, a, ref)
		if err != nil {
			return err
		}
		if err := a.tasks.ToggleTask(ctx, task.ID, completed); err != nil {
			return err
		}
		if completed {
			successColor.Printf("✔ Completed %q\n", task.Title)
		} else {
			fmt.Printf("○ Reopened %q\n", task.Title)
		}
		return nil
	})
}

func findTask(ctx context.Context, a *app, ref string) (models.Task, error) {
	if err := a.waitTasks(ctx); err != nil {
		return models.Task{}, err
	}
	return resolveTask(a.tasks.Tasks(), ref)
}

func viewFlags(cmd *cobra.Command) (models.Filter, models.PriorityFilter, error) {
	filter, _ := cmd.Flags().GetString("filter")
	f, err := models.ParseFilter(filter)
	if err != nil {
		return "", "", err
	}
	priority, _ := cmd.Flags().GetString("priority")
	pf, err := models.ParsePriorityFilter(priority)
	if err != nil {
		return "", "", err
	}
	return f, pf, nil
}

// patchFromFlags sets only the fields whose flags were given.
func patchFromFlags(cmd *cobra.Command) (models.TaskPatch, error) {
	var patch models.TaskPatch
	flags := cmd.Flags()

	if flags.Changed("title") {
		v, _ := flags.GetString("title")
		patch.Title = &v
	}
	if flags.Changed("description") {
		v, _ := flags.GetString("description")
		patch.Description = &v
	}
	if flags.Changed("due") {
		v, _ := flags.GetString("due")
		patch.DueDate = &v
	}
	if flags.Changed("priority") {
		v, _ := flags.GetString("priority")
		p, err := models.ParsePriority(v)
		if err != nil {
			return models.TaskPatch{}, err
		}
		patch.Priority = &p
	}
	if flags.Changed("daily") {
		v, _ := flags.GetBool("daily")
		patch.Recurrent = &v
	}
	return patch, nil
}

func emailFlagOrPrompt(cmd *cobra.Command) (string, error) {
	if email, _ := cmd.Flags().GetString("email"); email != "" {
		return email, nil
	}
	return prompt("Email:", false)
}

func displayName(user *models.Identity) string {
	if user.DisplayName != "" {
		return user.DisplayName
	}
	return user.Email
}
