package repo

const schemaSQL = `
CREATE TABLE IF NOT EXISTS tea (
	id         BIGSERIAL PRIMARY KEY,
	name       VARCHAR(200) NOT NULL,
	category   VARCHAR(50)  NOT NULL,
	year       INTEGER      NOT NULL,
	origin     VARCHAR(200) NOT NULL,
	spec       VARCHAR(80)  NOT NULL,
	price_min  INTEGER,
	price_max  INTEGER,
	intro      TEXT,
	cover_url  TEXT         NOT NULL,
	status     VARCHAR(20)  NOT NULL DEFAULT 'online',
	weight     INTEGER      NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ  NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ  NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS tea_status_order_idx ON tea (status, weight DESC, created_at DESC);

CREATE TABLE IF NOT EXISTS event (
	id           BIGSERIAL PRIMARY KEY,
	anon_user_id VARCHAR(64) NOT NULL,
	tea_id       BIGINT      NOT NULL,
	type         VARCHAR(50) NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS feedback (
	id           BIGSERIAL PRIMARY KEY,
	anon_user_id VARCHAR(64) NOT NULL,
	tea_id       BIGINT      NOT NULL,
	action       VARCHAR(20) NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS feedback_user_day_idx ON feedback (anon_user_id, created_at);

CREATE TABLE IF NOT EXISTS message_feedback (
	id           BIGSERIAL PRIMARY KEY,
	anon_user_id VARCHAR(64)  NOT NULL,
	tea_id       BIGINT,
	message      TEXT         NOT NULL,
	contact      VARCHAR(120),
	created_at   TIMESTAMPTZ  NOT NULL DEFAULT now()
);
`
