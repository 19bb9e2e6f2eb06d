package guard

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Orphan is a child row whose foreign key references a missing parent.
// Orphans are a defect state, never a valid transient: finding one means
// data was lost or deleted out-of-band.
type Orphan struct {
	FKValue   string    `gorm:"column:fk_value"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

// FindOrphans reports child rows whose fk column has no matching parent id.
// Table and column names are trusted identifiers from callers inside this
// repo, not user input.
func FindOrphans(db *gorm.DB, childTable, parentTable, fk string) ([]Orphan, error) {
	var orphans []Orphan
	query := fmt.Sprintf(
		"SELECT c.%s AS fk_value, c.created_at FROM %s c LEFT JOIN %s p ON c.%s = p.id WHERE p.id IS NULL",
		fk, childTable, parentTable, fk)
	if err := db.Raw(query).Scan(&orphans).Error; err != nil {
		return nil, fmt.Errorf("guard: find orphans in %s: %w", childTable, err)
	}
	return orphans, nil
}

// ownerChildTables maps each child table of users to its foreign key.
var ownerChildTables = map[string]string{
	"team_members":         "user_id",
	"conversations":        "owner_id",
	"conversation_backups": "user_id",
}

// EstimateDeletedOwners counts distinct foreign-key values across all
// owner-referencing orphan sets. The result is a lower bound on deleted
// owners: an owner with zero dependent rows in every tracked child table
// leaves no orphans and is invisible to this audit. Do not treat it as an
// exact count.
func EstimateDeletedOwners(db *gorm.DB) (int, error) {
	distinct := make(map[string]bool)
	for child, fk := range ownerChildTables {
		orphans, err := FindOrphans(db, child, "users", fk)
		if err != nil {
			return 0, err
		}
		for _, o := range orphans {
			distinct[o.FKValue] = true
		}
	}
	return len(distinct), nil
}
