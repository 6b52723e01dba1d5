package repair

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

const maxCASAttempts = 8

var errVersionConflict = errors.New("version conflict")

type Repo struct {
	db  *gorm.DB
	now func() time.Time
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// CreateRequest inserts r together with its empty conversation.
func (r *Repo) CreateRequest(ctx context.Context, req *Request) error {
	now := r.now()
	req.CreatedAt = now
	req.UpdatedAt = now
	req.Version = 1
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(req).Error; err != nil {
			return err
		}
		return tx.Create(&Conversation{RequestID: req.ID, CreatedAt: now, UpdatedAt: now}).Error
	})
}

func (r *Repo) GetRequest(ctx context.Context, id string) (*Request, error) {
	var req Request
	if err := r.db.WithContext(ctx).First(&req, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &req, nil
}

// ListRequestsByRequester returns requests newest first.
func (r *Repo) ListRequestsByRequester(ctx context.Context, requesterID string) ([]Request, error) {
	var out []Request
	if err := r.db.WithContext(ctx).
		Where("requester_id = ?", requesterID).
		Order("created_at DESC, id DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListUnassignedRequests returns requests without a professional, newest first.
func (r *Repo) ListUnassignedRequests(ctx context.Context) ([]Request, error) {
	var out []Request
	if err := r.db.WithContext(ctx).
		Where("professional_id IS NULL").
		Order("created_at DESC, id DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// MutateFunc changes req in place and returns the professional effects to
// apply alongside the write.
type MutateFunc func(req *Request, now time.Time) ([]Effect, error)

// MutateRequest is an optimistic read-modify-write of one request. The write
// only lands if the row version is unchanged since the read; otherwise fn is
// re-run against the fresh row.
func (r *Repo) MutateRequest(ctx context.Context, id string, fn MutateFunc) (*Request, error) {
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		var out *Request
		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var cur Request
			if err := tx.First(&cur, "id = ?", id).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrNotFound
				}
				return err
			}

			now := r.now()
			if now.Before(cur.UpdatedAt) {
				now = cur.UpdatedAt
			}

			next := cur
			effects, err := fn(&next, now)
			if err != nil {
				return err
			}
			next.ID = cur.ID
			next.CreatedAt = cur.CreatedAt
			next.Version = cur.Version + 1
			next.UpdatedAt = now

			res := tx.Model(&Request{}).
				Where("id = ? AND version = ?", cur.ID, cur.Version).
				Select("*").
				Omit("id", "created_at").
				Updates(&next)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return errVersionConflict
			}

			if err := applyEffects(tx, effects, now); err != nil {
				return err
			}
			out = &next
			return nil
		})
		if errors.Is(err, errVersionConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, ErrConflict
}

// DeleteRequest removes a request and its conversation after check approves
// the current row.
func (r *Repo) DeleteRequest(ctx context.Context, id string, check func(req *Request) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur Request
		if err := tx.First(&cur, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := check(&cur); err != nil {
			return err
		}
		res := tx.Where("id = ? AND version = ?", cur.ID, cur.Version).Delete(&Request{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConflict
		}
		if err := tx.Where("request_id = ?", cur.ID).Delete(&Message{}).Error; err != nil {
			return err
		}
		return tx.Where("request_id = ?", cur.ID).Delete(&Conversation{}).Error
	})
}

func applyEffects(tx *gorm.DB, effects []Effect, now time.Time) error {
	for _, e := range effects {
		var res *gorm.DB
		switch e.Kind {
		case EffectJobAccepted:
			res = tx.Model(&Professional{}).Where("id = ?", e.ProfessionalID).
				UpdateColumns(map[string]any{
					"total_jobs": gorm.Expr("total_jobs + 1"),
					"updated_at": now,
				})
		case EffectJobCompleted:
			// flat rate: one hourly rate per completed job
			res = tx.Model(&Professional{}).Where("id = ?", e.ProfessionalID).
				UpdateColumns(map[string]any{
					"completed_jobs": gorm.Expr("completed_jobs + 1"),
					"earnings":       gorm.Expr("earnings + hourly_rate"),
					"updated_at":     now,
				})
		case EffectJobRated:
			// rating is assigned before rating_count so both engines see the old count
			res = tx.Exec(
				"UPDATE professionals SET rating = (COALESCE(rating, 0) * rating_count + ?) / (rating_count + 1), rating_count = rating_count + 1, updated_at = ? WHERE id = ?",
				float64(e.Stars), now, e.ProfessionalID,
			)
		default:
			continue
		}
		if res.Error != nil {
			return res.Error
		}
	}
	return nil
}

// AppendMessage assigns m the next sequence number of its conversation and
// stores it.
func (r *Repo) AppendMessage(ctx context.Context, m *Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := r.now()
		// the counter bump also serializes concurrent appends on the row
		res := tx.Model(&Conversation{}).Where("request_id = ?", m.RequestID).
			UpdateColumns(map[string]any{
				"message_count": gorm.Expr("message_count + 1"),
				"updated_at":    now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}

		var conv Conversation
		if err := tx.First(&conv, "request_id = ?", m.RequestID).Error; err != nil {
			return err
		}
		m.Seq = conv.MessageCount
		m.CreatedAt = now
		return tx.Create(m).Error
	})
}

// ListMessages returns the conversation in append order.
func (r *Repo) ListMessages(ctx context.Context, requestID string) ([]Message, error) {
	var conv Conversation
	if err := r.db.WithContext(ctx).First(&conv, "request_id = ?", requestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var msgs []Message
	if err := r.db.WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("seq ASC").
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *Repo) CreateProfessional(ctx context.Context, p *Professional) error {
	var n int64
	if err := r.db.WithContext(ctx).Model(&Professional{}).Where("id = ?", p.ID).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return ErrProfessionalExists
	}
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *Repo) GetProfessional(ctx context.Context, id string) (*Professional, error) {
	var p Professional
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// SetAvailability only touches approved professionals; a pending or rejected
// application yields ErrNotApproved.
func (r *Repo) SetAvailability(ctx context.Context, id string, available bool) error {
	return r.updateProfessional(ctx, id, true, map[string]any{"is_available": available})
}

// UpdateProfile writes the given profile columns.
func (r *Repo) UpdateProfile(ctx context.Context, id string, cols map[string]any) error {
	return r.updateProfessional(ctx, id, false, cols)
}

func (r *Repo) updateProfessional(ctx context.Context, id string, approvedOnly bool, cols map[string]any) error {
	cols["updated_at"] = r.now()
	q := r.db.WithContext(ctx).Model(&Professional{}).Where("id = ?", id)
	if approvedOnly {
		q = q.Where("application_status = ?", ApplicationApproved)
	}
	res := q.UpdateColumns(cols)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	if _, err := r.GetProfessional(ctx, id); err != nil {
		return err
	}
	return ErrNotApproved
}

// ReviewApplication records the decision on an application. Approval makes
// the professional available; rejection withdraws availability.
func (r *Repo) ReviewApplication(ctx context.Context, id string, status ApplicationStatus, reviewerID string, notes *string) (*Professional, error) {
	var out Professional
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := r.now()
		res := tx.Model(&Professional{}).Where("id = ?", id).
			UpdateColumns(map[string]any{
				"application_status": status,
				"is_available":       status == ApplicationApproved,
				"review_notes":       notes,
				"reviewed_by":        reviewerID,
				"reviewed_at":        now,
				"updated_at":         now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.First(&out, "id = ?", id).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListProfessionals returns professionals in the given application status,
// oldest application first.
func (r *Repo) ListProfessionals(ctx context.Context, status ApplicationStatus) ([]Professional, error) {
	var out []Professional
	if err := r.db.WithContext(ctx).
		Where("application_status = ?", status).
		Order("applied_at ASC, id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListAvailableByTrade returns approved, available professionals of one
// trade, best rated first.
func (r *Repo) ListAvailableByTrade(ctx context.Context, trade string) ([]Professional, error) {
	var out []Professional
	if err := r.db.WithContext(ctx).
		Where("application_status = ? AND is_available = ? AND trade_category = ?", ApplicationApproved, true, trade).
		Order("COALESCE(rating, 0) DESC, id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
