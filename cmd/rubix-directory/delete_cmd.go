package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDeleteUserCmd(a *app) *cobra.Command {
	var replacement string
	cmd := &cobra.Command{
		Use:   "delete-user <user-id>",
		Short: "Delete a user, moving its timesheets and invoices to a replacement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.svc.DeleteUser(cmd.Context(), args[0], replacement); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVarP(&replacement, "replacement", "r", "", "User id receiving the deleted user's records")
	return cmd
}
