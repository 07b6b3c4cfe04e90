package analytics

import (
	"context"
	"sort"
	"time"

	"promo-sentinel/internal/storage"
)

type RecordSource interface {
	RecordsByAuthor(ctx context.Context, guildID, authorID string, opts ...storage.AuthorOption) ([]storage.ModerationRecord, error)
}

type Service struct {
	store RecordSource
}

func New(store RecordSource) *Service {
	return &Service{store: store}
}

// ServerStat summarises one advertised server.
type ServerStat struct {
	OwnerGuildID string
	Posts        int
	LastPosted   time.Time
}

type AuthorReport struct {
	Total   int
	Live    int
	Removed int
	Servers []ServerStat
}

// AuthorReport summarises what authorID advertised in guildID within the
// retention horizon, including posts that were removed since.
func (s *Service) AuthorReport(ctx context.Context, guildID, authorID string) (AuthorReport, error) {
	records, err := s.store.RecordsByAuthor(ctx, guildID, authorID, storage.IncludeSoftDeleted())
	if err != nil {
		return AuthorReport{}, err
	}

	report := AuthorReport{}
	messages := make(map[string]bool)
	byServer := make(map[string]*ServerStat)
	for _, record := range records {
		if _, ok := messages[record.MessageID]; !ok {
			messages[record.MessageID] = record.SoftDeleted
			report.Total++
			if record.SoftDeleted {
				report.Removed++
			} else {
				report.Live++
			}
		}

		stat := byServer[record.OwnerGuildID]
		if stat == nil {
			stat = &ServerStat{OwnerGuildID: record.OwnerGuildID}
			byServer[record.OwnerGuildID] = stat
		}
		stat.Posts++
		if record.CreatedAt.After(stat.LastPosted) {
			stat.LastPosted = record.CreatedAt
		}
	}

	for _, stat := range byServer {
		report.Servers = append(report.Servers, *stat)
	}
	sort.Slice(report.Servers, func(i, j int) bool {
		if !report.Servers[i].LastPosted.Equal(report.Servers[j].LastPosted) {
			return report.Servers[i].LastPosted.After(report.Servers[j].LastPosted)
		}
		return report.Servers[i].OwnerGuildID < report.Servers[j].OwnerGuildID
	})
	return report, nil
}
