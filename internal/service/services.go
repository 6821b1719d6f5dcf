package service

import (
	"github.com/vidtube/vidtube-server/internal/config"
	"github.com/vidtube/vidtube-server/internal/repository"
)

type Services struct {
	Session *SessionService
}

func NewServices(repos *repository.Repositories, cfg *config.Config) *Services {
	return &Services{
		Session: NewSessionService(repos.User, cfg),
	}
}
