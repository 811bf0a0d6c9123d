package users

const userColumns = `id, email, password_digest, google_subject, apple_subject, display_name, avatar_url, is_verified, created_at, updated_at, last_login_at`

const (
	queryFindByID = `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1
	`

	queryFindByEmail = `
		SELECT ` + userColumns + `
		FROM users
		WHERE LOWER(email) = LOWER($1)
	`

	queryFindByGoogleSubject = `
		SELECT ` + userColumns + `
		FROM users
		WHERE google_subject = $1
	`

	queryFindByAppleSubject = `
		SELECT ` + userColumns + `
		FROM users
		WHERE apple_subject = $1
	`

	// relies on the unique index on LOWER(email) to make the existence check
	// and insert a single atomic operation
	queryCreateLocal = `
		INSERT INTO users (email, password_digest)
		VALUES ($1, $2)
		RETURNING ` + userColumns + `
	`

	queryCreateGoogleUser = `
		INSERT INTO users (email, google_subject, display_name, avatar_url, is_verified)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5)
		RETURNING ` + userColumns + `
	`

	queryCreateAppleUser = `
		INSERT INTO users (email, apple_subject, display_name, avatar_url, is_verified)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5)
		RETURNING ` + userColumns + `
	`

	// only links when no subject is stored yet; a second WHERE guard keeps a
	// concurrent link from silently overwriting an existing identity
	queryLinkGoogleSubject = `
		UPDATE users
		SET google_subject = $1, is_verified = TRUE, updated_at = NOW()
		WHERE id = $2 AND google_subject IS NULL
		RETURNING ` + userColumns + `
	`

	queryLinkAppleSubject = `
		UPDATE users
		SET apple_subject = $1, is_verified = TRUE, updated_at = NOW()
		WHERE id = $2 AND apple_subject IS NULL
		RETURNING ` + userColumns + `
	`

	// absent claims never erase stored profile fields: empty inputs collapse
	// to NULL and COALESCE keeps the existing value
	queryUpdateFederatedProfile = `
		UPDATE users
		SET display_name = COALESCE(NULLIF($1, ''), display_name),
		    avatar_url   = COALESCE(NULLIF($2, ''), avatar_url),
		    is_verified  = is_verified OR $3,
		    updated_at   = NOW()
		WHERE id = $4
		RETURNING ` + userColumns + `
	`

	queryTouchLastLogin = `
		UPDATE users
		SET last_login_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`
)
