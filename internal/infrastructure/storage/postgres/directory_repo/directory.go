// Package directory_repo provides the PostgreSQL lookups for the identity
// directory: users, clients and projects.
package directory_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"albaran/internal/core/apperror"
	"albaran/internal/core/id"
	"albaran/internal/domain/directory"
	"albaran/internal/infrastructure/storage/postgres"
)

const (
	usersTable    = "users"
	clientsTable  = "clients"
	projectsTable = "projects"
)

func builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// UserRepo implements directory.Users.
type UserRepo struct {
	txm        *postgres.TxManager
	selectCols []string
}

var _ directory.Users = (*UserRepo)(nil)

// NewUserRepo creates a new user repository.
func NewUserRepo(txm *postgres.TxManager) *UserRepo {
	return &UserRepo{
		txm:        txm,
		selectCols: postgres.ExtractDBColumns[directory.User](),
	}
}

// FindByID returns the user with company fiscal data attached when present.
func (r *UserRepo) FindByID(ctx context.Context, userID id.ID) (*directory.User, error) {
	cols := append([]string{}, r.selectCols...)
	cols = append(cols, "company_name", "company_tax_id", "company_address")

	q := builder().
		Select(cols...).
		From(usersTable).
		Where(squirrel.Eq{"id": userID})

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	row := struct {
		directory.User
		directory.Company
	}{}

	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &row, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("user", userID.String())
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	user := row.User
	if row.Company.Name != "" {
		company := row.Company
		user.Company = &company
	}
	return &user, nil
}

// ClientRepo implements directory.Clients.
type ClientRepo struct {
	txm        *postgres.TxManager
	selectCols []string
}

var _ directory.Clients = (*ClientRepo)(nil)

// NewClientRepo creates a new client repository.
func NewClientRepo(txm *postgres.TxManager) *ClientRepo {
	return &ClientRepo{
		txm:        txm,
		selectCols: postgres.ExtractDBColumns[directory.Client](),
	}
}

// FindByID returns the client, archived or not. Notes keep rendering the
// client they were billed to even after it is archived.
func (r *ClientRepo) FindByID(ctx context.Context, clientID id.ID) (*directory.Client, error) {
	q := builder().
		Select(r.selectCols...).
		From(clientsTable).
		Where(squirrel.Eq{"id": clientID})

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	client := &directory.Client{}
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, client, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("client", clientID.String())
		}
		return nil, fmt.Errorf("get client: %w", err)
	}
	return client, nil
}

// ProjectRepo implements directory.Projects.
type ProjectRepo struct {
	txm        *postgres.TxManager
	selectCols []string
	clients    *ClientRepo
}

var _ directory.Projects = (*ProjectRepo)(nil)

// NewProjectRepo creates a new project repository.
func NewProjectRepo(txm *postgres.TxManager, clients *ClientRepo) *ProjectRepo {
	return &ProjectRepo{
		txm:        txm,
		selectCols: postgres.ExtractDBColumns[directory.Project](),
		clients:    clients,
	}
}

// FindOwnedActive returns the project only when it exists, belongs to
// ownerID and is not archived. Everything else collapses into NotFound,
// so callers cannot probe foreign or archived projects.
func (r *ProjectRepo) FindOwnedActive(ctx context.Context, projectID, ownerID id.ID) (*directory.Project, error) {
	q := builder().
		Select(r.selectCols...).
		From(projectsTable).
		Where(squirrel.Eq{
			"id":       projectID,
			"owner_id": ownerID,
			"archived": false,
		})

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	project := &directory.Project{}
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, project, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("project", projectID.String())
		}
		return nil, fmt.Errorf("get project: %w", err)
	}

	client, err := r.clients.FindByID(ctx, project.ClientID)
	if err != nil && !apperror.IsNotFound(err) {
		return nil, err
	}
	project.Client = client

	return project, nil
}
