package storage

import (
	"context"
	"database/sql"
)

// Default data present in every fresh database.
const (
	SeedUserName    = "master"
	SeedUserPass    = "pass"
	SeedChannelName = "general"
	SeedChannelDesc = "general main room"
)

// seed populates a freshly created database with the master user, the
// general channel and the membership linking the two.
func (s *Store) seed() error {
	ctx := context.Background()

	s.logger.Info("New database, seeding default data")

	uid, err := s.CreateUser(ctx, SeedUserName, SeedUserPass)
	if err != nil {
		return err
	}
	// CreateChannel also enrolls the owner
	_, err = s.CreateChannel(ctx, SeedChannelName, uid,
		sql.NullString{String: SeedChannelDesc, Valid: true})
	return err
}
