package store

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"paworker/internal/common"
	"paworker/internal/constants"
	"paworker/internal/evidence"
)

type EvidencePacks struct {
	DB *gorm.DB
}

// CreateOrGet returns the pack of the request, creating it on first use. The
// no-op update makes RETURNING yield the existing id on conflict.
func (p *EvidencePacks) CreateOrGet(ctx context.Context, paRequestID int64) (int64, error) {
	ts := now()
	row := p.DB.WithContext(ctx).Raw(`
insert into evidence_packs
  (pa_request_id, status, missing_requirements, created_by, modified_by, created_at, modified_at)
values (?, ?, ?, ?, ?, ?, ?)
on conflict (pa_request_id)
do update set pa_request_id = excluded.pa_request_id
returning id`,
		paRequestID, string(constants.PackCreated), StringList{}, workerActor, workerActor, ts, ts,
	).Row()

	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, common.Persistence(fmt.Sprintf("create or get evidence pack for pa request %d", paRequestID), err)
	}
	return id, nil
}

// InsertFinding stores the extraction of one document. Re-running the same
// document against the same pack overwrites the earlier row.
func (p *EvidencePacks) InsertFinding(ctx context.Context, packID, documentID int64, findings evidence.Findings) error {
	sources, err := json.Marshal(findings.Sources())
	if err != nil {
		return common.Persistence("encode evidence sources", err)
	}
	full, err := json.Marshal(findings)
	if err != nil {
		return common.Persistence("encode findings", err)
	}

	row := ExtractedEvidence{
		EvidencePackID:       packID,
		DocumentID:           documentID,
		ImagingPresent:       findings.Present(evidence.Imaging),
		TherapyAttempted:     findings.Present(evidence.ConservativeTherapy),
		FunctionalLimitation: findings.Present(evidence.FunctionalLimitation),
		TherapySubtypes:      StringList{},
		MissingFields:        StringList(findings.MissingNames()),
		Sources:              sources,
		Findings:             full,
		CreatedBy:            workerActor,
		ModifiedBy:           workerActor,
		CreatedAt:            now(),
		ModifiedAt:           now(),
	}
	if d, ok := findings.Get(evidence.Diagnosis); ok && d.Present {
		row.Diagnosis = nullable(d.Value)
	}
	if t, ok := findings.Get(evidence.ConservativeTherapy); ok && len(t.Subtypes) > 0 {
		row.TherapySubtypes = StringList(t.Subtypes)
	}

	err = p.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "evidence_pack_id"}, {Name: "document_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"diagnosis", "imaging_present", "therapy_attempted", "functional_limitation",
			"therapy_subtypes", "missing_fields", "sources", "findings", "modified_by", "modified_at",
		}),
	}).Create(&row).Error
	return common.Persistence(fmt.Sprintf("insert findings for pack %d", packID), err)
}

// Finalize records the decision. A stale packID rolls back and reports
// common.ErrNotFound.
func (p *EvidencePacks) Finalize(ctx context.Context, packID int64, outcome evidence.PackOutcome) error {
	sources, err := json.Marshal(outcome.Sources)
	if err != nil {
		return common.Persistence("encode pack sources", err)
	}
	meta, err := json.Marshal(outcome.Metadata)
	if err != nil {
		return common.Persistence("encode pack metadata", err)
	}
	missing := StringList(outcome.MissingRequirements)
	if missing == nil {
		missing = StringList{}
	}

	tx := p.DB.WithContext(ctx).Begin()
	if tx.Error != nil {
		return common.Persistence("begin finalize", tx.Error)
	}

	res := tx.Model(&EvidencePack{}).
		Where("id = ?", packID).
		Updates(map[string]any{
			"status":               string(constants.PackFinalized),
			"decision":             string(outcome.Decision),
			"explanation":          outcome.Explanation,
			"missing_requirements": missing,
			"sources":              json.RawMessage(sources),
			"metadata":             json.RawMessage(meta),
			"modified_by":          workerActor,
			"modified_at":          now(),
		})
	if res.Error != nil {
		tx.Rollback()
		return common.Persistence(fmt.Sprintf("finalize evidence pack %d", packID), res.Error)
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		return common.Persistence(fmt.Sprintf("finalize evidence pack %d", packID), common.ErrNotFound)
	}

	if err := tx.Commit().Error; err != nil {
		return common.Persistence(fmt.Sprintf("commit evidence pack %d", packID), err)
	}
	return nil
}

// Findings lists the extracted evidence rows of a pack by document id.
func (p *EvidencePacks) Findings(ctx context.Context, packID int64) ([]ExtractedEvidence, error) {
	var rows []ExtractedEvidence
	err := p.DB.WithContext(ctx).Where("evidence_pack_id = ?", packID).Order("document_id").Find(&rows).Error
	if err != nil {
		return nil, common.Persistence(fmt.Sprintf("list findings of pack %d", packID), err)
	}
	return rows, nil
}
