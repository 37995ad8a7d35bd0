package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dekarrin/campman/server/dao"
)

type CampaignsDB struct {
	db *sql.DB
}

const campaignColumns = `id, owner_id, name, start_date, end_date, created, modified`

func scanCampaign(row rowScanner) (dao.Campaign, error) {
	var c dao.Campaign
	var start, end string
	var created, modified int64

	if err := row.Scan(&c.ID, &c.OwnerID, &c.Name, &start, &end, &created, &modified); err != nil {
		return dao.Campaign{}, wrapDBError(err)
	}

	if err := convertFromDB_Date(start, &c.StartDate); err != nil {
		return c, fmt.Errorf("stored start_date %q is invalid: %w", start, err)
	}
	if err := convertFromDB_Date(end, &c.EndDate); err != nil {
		return c, fmt.Errorf("stored end_date %q is invalid: %w", end, err)
	}
	convertFromDB_Time(created, &c.Created)
	convertFromDB_Time(modified, &c.Modified)
	return c, nil
}

func (repo *CampaignsDB) Create(ctx context.Context, c dao.Campaign) (dao.Campaign, error) {
	now := convertToDB_Time(time.Now())
	id, err := insert(ctx, repo.db, `INSERT INTO campaigns (owner_id, name, start_date, end_date, created, modified) VALUES (?, ?, ?, ?, ?, ?)`,
		c.OwnerID, c.Name, convertToDB_Date(c.StartDate), convertToDB_Date(c.EndDate), now, now,
	)
	if err != nil {
		return dao.Campaign{}, err
	}
	return repo.GetByID(ctx, id)
}

func (repo *CampaignsDB) GetAll(ctx context.Context) ([]dao.Campaign, error) {
	return queryAll(ctx, repo.db, scanCampaign, `SELECT `+campaignColumns+` FROM campaigns ORDER BY id;`)
}

func (repo *CampaignsDB) GetAllByOwner(ctx context.Context, ownerID int) ([]dao.Campaign, error) {
	return queryAll(ctx, repo.db, scanCampaign, `SELECT `+campaignColumns+` FROM campaigns WHERE owner_id = ? ORDER BY id;`, ownerID)
}

func (repo *CampaignsDB) GetByID(ctx context.Context, id int) (dao.Campaign, error) {
	return scanCampaign(repo.db.QueryRowContext(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE id = ?;`, id))
}

// Update replaces the campaign with the given ID and bumps its Modified time.
func (repo *CampaignsDB) Update(ctx context.Context, id int, c dao.Campaign) (dao.Campaign, error) {
	err := execOne(ctx, repo.db, `UPDATE campaigns SET owner_id=?, name=?, start_date=?, end_date=?, modified=? WHERE id=?;`,
		c.OwnerID, c.Name, convertToDB_Date(c.StartDate), convertToDB_Date(c.EndDate), convertToDB_Time(time.Now()), id,
	)
	if err != nil {
		return dao.Campaign{}, err
	}
	return repo.GetByID(ctx, id)
}

func (repo *CampaignsDB) Delete(ctx context.Context, id int) (dao.Campaign, error) {
	c, err := repo.GetByID(ctx, id)
	if err != nil {
		return dao.Campaign{}, err
	}
	if err := execOne(ctx, repo.db, `DELETE FROM campaigns WHERE id = ?`, id); err != nil {
		return dao.Campaign{}, err
	}
	return c, nil
}
