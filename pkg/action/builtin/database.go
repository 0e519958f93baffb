package builtin

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/wflowhq/engine/pkg/action"
	"github.com/wflowhq/engine/pkg/action/config"
)

// DatabaseAction runs a databaseQuery node against a Postgres target
// named by the node's credential (a connection string). A missing
// credential is an action failure — there is no default database.
type DatabaseAction struct {
	*action.BaseAction
}

func NewDatabaseAction() *DatabaseAction {
	return &DatabaseAction{BaseAction: action.NewBaseAction("databaseQuery")}
}

func (a *DatabaseAction) Execute(ctx context.Context, services action.Services, cfg map[string]interface{}, input interface{}) action.Result {
	c, err := config.ParseConfig[config.DatabaseConfig](cfg)
	if err != nil {
		return action.Result{Error: err.Error()}
	}
	if err := c.Validate(); err != nil {
		return action.Result{Error: err.Error()}
	}

	cred, ok := services.GetCredential(ctx, c.CredentialID)
	if !ok {
		return action.Result{Error: "Failed to decrypt data"}
	}
	dsn, _ := cred["dsn"].(string)
	if dsn == "" {
		return action.Result{Error: "database credential missing dsn"}
	}

	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return action.Result{Error: fmt.Sprintf("failed to connect: %v", err)}
	}
	defer db.Close()

	rows, err := db.QueryxContext(ctx, c.Query)
	if err != nil {
		return action.Result{Error: fmt.Sprintf("query failed: %v", err)}
	}
	defer rows.Close()

	var results []map[string]interface{}
	for rows.Next() {
		row := make(map[string]interface{})
		if err := rows.MapScan(row); err != nil {
			return action.Result{Error: fmt.Sprintf("failed to scan row: %v", err)}
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return action.Result{Error: fmt.Sprintf("row iteration failed: %v", err)}
	}

	return action.Result{
		Success: true,
		Output: map[string]interface{}{
			"rows":     results,
			"rowCount": len(results),
		},
	}
}

func (a *DatabaseAction) Validate(cfg map[string]interface{}) error {
	c, err := config.ParseConfig[config.DatabaseConfig](cfg)
	if err != nil {
		return err
	}
	return c.Validate()
}
