package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"execdash/internal/db"
)

func newAdminCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage dashboard users",
	}
	cmd.AddCommand(newAdminCreateCmd(opts))
	return cmd
}

func newAdminCreateCmd(opts *options) *cobra.Command {
	var username, password, role string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user that can sign in to the dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if username == "" || password == "" {
				return errors.New("--username and --password are required")
			}
			if !db.ValidRole(role) {
				return fmt.Errorf("unknown role %q (admin, editor or viewer)", role)
			}

			sqlDB, err := opts.open()
			if err != nil {
				return err
			}
			defer closeDB(sqlDB)

			var user *db.User
			err = sqlDB.Transaction(func(tx *gorm.DB) error {
				u, err := db.CreateUser(tx, username, password, role)
				if err != nil {
					return err
				}
				user = u
				return db.AppendAudit(tx, db.AuditEntry{
					Actor:    cliActor,
					Action:   "INSERT",
					Table:    "users",
					RecordID: strconv.FormatUint(uint64(u.ID), 10),
					New:      map[string]string{"username": u.Username, "role": u.Role},
					At:       time.Now(),
				})
			})
			if err != nil {
				return fmt.Errorf("create user: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s user %q (id %d)\n", user.Role, user.Username, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "Login name")
	cmd.Flags().StringVar(&password, "password", "", "Initial password")
	cmd.Flags().StringVar(&role, "role", db.RoleEditor, "Role: admin, editor or viewer")
	return cmd
}
