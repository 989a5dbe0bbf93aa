package db

import (
	"github.com/aragon/zkid-node/types"
)

// StoreVerification stores the outcome of a proof submission for the given
// address and credential
func (r *SQLite) StoreVerification(address, credential, outcome string) error {
	sqlQuery := `
	INSERT INTO verifications(
		address,
		credential,
		outcome,
		insertedDatetime
	) values(?, ?, ?, CURRENT_TIMESTAMP)
	`

	stmt, err := r.db.Prepare(sqlQuery)
	if err != nil {
		return err
	}
	defer stmt.Close() //nolint:errcheck

	_, err = stmt.Exec(address, credential, outcome)
	if err != nil {
		return err
	}
	return nil
}

// ReadVerificationsByAddress reads the stored types.Verification of the given
// address, newest first
func (r *SQLite) ReadVerificationsByAddress(address string) ([]types.Verification, error) {
	// TODO add pagination
	sqlQuery := `
	SELECT id, address, credential, outcome, insertedDatetime FROM verifications
	WHERE address = ?
	ORDER BY id DESC
	`

	rows, err := r.db.Query(sqlQuery, address)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var verifications []types.Verification
	for rows.Next() {
		v := types.Verification{}
		err = rows.Scan(&v.ID, &v.Address, &v.Credential, &v.Outcome,
			&v.InsertedDatetime)
		if err != nil {
			return nil, err
		}
		verifications = append(verifications, v)
	}
	return verifications, rows.Err()
}
