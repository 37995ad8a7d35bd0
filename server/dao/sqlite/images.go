package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/dekarrin/campman/server/dao"
)

// ImagesDB keeps image bytes in the images table, one row per campaign slot.
type ImagesDB struct {
	db *sql.DB
}

const imageColumns = `campaign_id, slot, filename, content_type, data, uploaded`

func scanImage(row rowScanner) (dao.Image, error) {
	var img dao.Image
	var uploaded int64
	if err := row.Scan(&img.CampaignID, &img.Slot, &img.Filename, &img.ContentType, &img.Data, &uploaded); err != nil {
		return dao.Image{}, wrapDBError(err)
	}
	convertFromDB_Time(uploaded, &img.Uploaded)
	return img, nil
}

// Put stores img, replacing whatever was in its slot.
func (repo *ImagesDB) Put(ctx context.Context, img dao.Image) (dao.Image, error) {
	_, err := execCount(ctx, repo.db, `INSERT OR REPLACE INTO images (`+imageColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		img.CampaignID, img.Slot, img.Filename, img.ContentType, img.Data, convertToDB_Time(time.Now()),
	)
	if err != nil {
		return dao.Image{}, err
	}
	return repo.Get(ctx, img.CampaignID, img.Slot)
}

func (repo *ImagesDB) Get(ctx context.Context, campaignID int, slot string) (dao.Image, error) {
	return scanImage(repo.db.QueryRowContext(ctx, `SELECT `+imageColumns+` FROM images WHERE campaign_id = ? AND slot = ?;`, campaignID, slot))
}

func (repo *ImagesDB) GetAllByCampaign(ctx context.Context, campaignID int) ([]dao.Image, error) {
	return queryAll(ctx, repo.db, scanImage, `SELECT `+imageColumns+` FROM images WHERE campaign_id = ? ORDER BY slot;`, campaignID)
}

func (repo *ImagesDB) DeleteAllByCampaign(ctx context.Context, campaignID int) error {
	_, err := execCount(ctx, repo.db, `DELETE FROM images WHERE campaign_id = ?`, campaignID)
	return err
}
