package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-post-feed/internal/domain/entity"
	repo "github.com/oksasatya/go-post-feed/internal/domain/repository"
	"github.com/oksasatya/go-post-feed/pkg/helpers"
	"github.com/oksasatya/go-post-feed/pkg/mailer"
	mailtpl "github.com/oksasatya/go-post-feed/pkg/mailer/templates"
)

// NotifyService turns post events into emails for the post owner.
type NotifyService struct {
	Users       repo.UserRepository
	Posts       repo.PostRepository
	Mail        Mailer
	Logger      *logrus.Logger
	CompanyName string
	PostURLBase string
}

func NewNotifyService(users repo.UserRepository, posts repo.PostRepository, mail Mailer, logger *logrus.Logger, companyName, postURLBase string) *NotifyService {
	return &NotifyService{Users: users, Posts: posts, Mail: mail, Logger: logger, CompanyName: companyName, PostURLBase: postURLBase}
}

// BuildEmail renders the email for evt. It returns nil when the event does
// not notify anyone: other event types, self activity, or a post that is
// already gone.
func (s *NotifyService) BuildEmail(ctx context.Context, evt entity.PostEvent) (*mailer.EmailJob, error) {
	var tpl string
	switch evt.Type {
	case entity.PostReplied:
		tpl = mailtpl.PostReplied
	case entity.PostLiked:
		tpl = mailtpl.PostLiked
	default:
		return nil, nil
	}
	if evt.ActorID == evt.PostOwner {
		return nil, nil
	}

	owner, err := s.Users.GetByID(ctx, evt.PostOwner)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: get owner: %w", ErrStorage, err)
	}
	if owner.Email == "" {
		return nil, nil
	}
	actor, err := s.Users.GetByID(ctx, evt.ActorID)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("%w: get actor: %w", ErrStorage, err)
	}
	post, err := s.Posts.GetByID(ctx, evt.PostID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: get post: %w", ErrStorage, err)
	}

	data := mailtpl.ActivityData{
		CompanyName: s.CompanyName,
		OwnerName:   owner.Name,
		PostText:    post.Text,
		PostURL:     s.PostURLBase + "/" + post.ID,
		At:          evt.At,
	}
	if actor != nil {
		data.ActorUsername = actor.Username
	}
	if evt.Type == entity.PostReplied {
		data.ReplyText = evt.Text
	}

	subject, text, html, err := mailtpl.Render(tpl, data)
	if err != nil {
		return nil, err
	}
	return &mailer.EmailJob{To: owner.Email, Subject: subject, Text: text, HTML: html, Template: tpl}, nil
}

// HandleEvent builds and sends the email for evt, if any.
func (s *NotifyService) HandleEvent(ctx context.Context, evt entity.PostEvent) error {
	job, err := s.BuildEmail(ctx, evt)
	if err != nil || job == nil {
		return err
	}
	if err := s.Mail.Send(ctx, job.To, job.Subject, job.Text, job.HTML); err != nil {
		return fmt.Errorf("send %s: %w", job.Template, err)
	}
	helpers.LogInfo(s.Logger, "notification sent", logrus.Fields{"post_id": evt.PostID, "template": job.Template})
	return nil
}
