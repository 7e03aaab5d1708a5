package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"planity/domain"
	"planity/repository"
	"planity/usecase"
)

// Command is one tagged mutation in a POST /api/commands batch. Exactly the
// payload fields the Type needs are read; the rest stay empty.
type Command struct {
	Type string `json:"type"`

	Task       *domain.Task      `json:"task,omitempty"`
	TaskID     string            `json:"taskId,omitempty"`
	Category   string            `json:"category,omitempty"`
	Name       string            `json:"name,omitempty"`
	CategoryID string            `json:"categoryId,omitempty"`
	Categories []domain.Category `json:"categories,omitempty"`
}

// Command types accepted by the gateway.
const (
	CmdCreateTask        = "create-task"
	CmdUpdateTask        = "update-task"
	CmdDeleteTask        = "delete-task"
	CmdMoveTask          = "move-task"
	CmdCreateCategory    = "create-category"
	CmdDeleteCategory    = "delete-category"
	CmdReorderCategories = "reorder-categories"
)

func (g *Gateway) postCommands(c echo.Context) (err error) {
	metrics, ctx := newRequestMetrics(c.Request().Context(), g.log, "/api/commands")
	defer func() { metrics.Log(c.Response().Status, err) }()

	userID, authErr := g.verifier.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
	if authErr != nil {
		metrics.SetErrorStage("auth")
		return c.String(http.StatusUnauthorized, authErr.Error())
	}

	cmds := make([]Command, 0, 4)
	if err := decodeBody(c.Request().Body, &cmds); err != nil {
		metrics.SetErrorStage("decode")
		return c.String(http.StatusBadRequest, "invalid body")
	}

	repo := g.repoFor(userID)
	for i, cmd := range cmds {
		if dispatchErr := dispatchCommand(ctx, repo, cmd); dispatchErr != nil {
			metrics.SetErrorStage("dispatch")
			return c.String(http.StatusBadRequest, fmt.Sprintf("command %d: %v", i, dispatchErr))
		}
	}
	metrics.SetItemsReturned(len(cmds))
	return c.JSON(http.StatusAccepted, map[string]int{"accepted": len(cmds)})
}

// dispatchCommand routes one command to its use case. Use-case validation
// stays silent per the fire-and-forget contract; only unknown or structurally
// impossible commands are rejected.
func dispatchCommand(ctx context.Context, repo *repository.Repository, cmd Command) error {
	switch cmd.Type {
	case CmdCreateTask:
		if cmd.Task == nil {
			return fmt.Errorf("missing task payload")
		}
		usecase.CreateTask{Repo: repo}.Create(ctx, *cmd.Task)
	case CmdUpdateTask:
		if cmd.Task == nil {
			return fmt.Errorf("missing task payload")
		}
		usecase.UpdateTask{Repo: repo}.Update(ctx, *cmd.Task)
	case CmdDeleteTask:
		usecase.DeleteTask{Repo: repo}.Delete(ctx, cmd.TaskID)
	case CmdMoveTask:
		usecase.MoveTaskToCategory{Repo: repo}.Move(ctx, cmd.TaskID, cmd.Category)
	case CmdCreateCategory:
		usecase.CreateCategory{Repo: repo}.Create(ctx, cmd.Name)
	case CmdDeleteCategory:
		usecase.DeleteCategory{Repo: repo}.Delete(ctx, cmd.CategoryID)
	case CmdReorderCategories:
		usecase.UpdateCategoryOrder{Repo: repo}.Update(ctx, cmd.Categories)
	default:
		return fmt.Errorf("unknown command type %q", cmd.Type)
	}
	return nil
}
