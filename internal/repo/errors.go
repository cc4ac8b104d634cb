package repo

//go:generate mockgen -destination=../../mocks/repo_mocks.go -package=mocks taskflow/internal/repo UserRepo,TaskRepo,ProjectRepo,NotificationRepo

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)
