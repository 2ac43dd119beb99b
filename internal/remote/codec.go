package remote

import (
	"github.com/splitsync/splitsync/internal/models"
)

// Field projections for each entity, matching the remote schema.
var (
	ExpenseFields = []string{"id", "name", "amount", "payer_id", "participant_ids", "date", "category", "group_id", "settled"}
	GroupFields   = []string{"id", "name", "member_ids"}
	PersonFields  = []string{"id", "name", "is_default_participant"}
)

// DecodeExpense normalizes a queried expense into a cache record. The result
// is always Synced: only server-confirmed records come off the wire.
func DecodeExpense(r Record) *models.ExpenseRecord {
	id := r.Int("id")
	return &models.ExpenseRecord{
		Key:          models.RemoteKey(id),
		RemoteID:     id,
		Description:  r.String("name"),
		Amount:       r.Float("amount"),
		Payer:        r.Ref("payer_id"),
		Participants: r.Refs("participant_ids"),
		Date:         r.String("date"),
		Category:     r.String("category"),
		Group:        r.Ref("group_id"),
		Settled:      r.Bool("settled"),
		SyncState:    models.SyncStateSynced,
	}
}

// DecodeGroup normalizes a queried group into a cache record.
func DecodeGroup(r Record) *models.Group {
	id := r.Int("id")
	return &models.Group{
		Key:         models.RemoteKey(id),
		RemoteID:    id,
		DisplayName: r.String("name"),
		Members:     r.Refs("member_ids"),
		SyncState:   models.SyncStateSynced,
	}
}

// DecodePerson normalizes a queried person.
func DecodePerson(r Record) *models.Person {
	return &models.Person{
		ID:                   r.Int("id"),
		DisplayName:          r.String("name"),
		IsDefaultParticipant: r.Bool("is_default_participant"),
	}
}

// EncodeExpense builds the write-side field map for a record. Multi-reference
// fields use the replace command; an unset group is written as false so the
// server clears it.
func EncodeExpense(rec *models.ExpenseRecord) map[string]any {
	fields := map[string]any{
		"name":            rec.Description,
		"amount":          rec.Amount,
		"payer_id":        rec.Payer.ID,
		"participant_ids": ReplaceCommand(models.RefIDs(rec.Participants)),
		"date":            rec.Date,
		"category":        rec.Category,
		"settled":         rec.Settled,
	}
	if rec.Group.ID != 0 {
		fields["group_id"] = rec.Group.ID
	} else {
		fields["group_id"] = false
	}
	return fields
}

// EncodeGroup builds the write-side field map for a group.
func EncodeGroup(g *models.Group) map[string]any {
	return map[string]any{
		"name":       g.DisplayName,
		"member_ids": ReplaceCommand(models.RefIDs(g.Members)),
	}
}
