// ABOUTME: TUI launch command
// ABOUTME: Wires the sync stack and hands control to the interactive interface

package cli

import (
	"database/sql"

	"github.com/harperreed/leadsync/tui"
)

// TUICommand starts the interactive interface.
func TUICommand(database *sql.DB, args []string) error {
	stack, err := buildSyncStack(database)
	if err != nil {
		return err
	}
	defer stack.close()

	return tui.Run(database, stack.cfg.Owner, stack.coordinator)
}
