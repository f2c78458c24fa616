package sqlite

const schemaSQL = `
-- Categories define named keyword searches with optional schedules
CREATE TABLE IF NOT EXISTS categories (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	keywords TEXT NOT NULL,
	exclude_keywords TEXT,
	language TEXT,
	country TEXT,
	is_active INTEGER NOT NULL DEFAULT 1,
	schedule_enabled INTEGER NOT NULL DEFAULT 0,
	schedule_interval_minutes INTEGER,
	last_scheduled_run_at INTEGER,
	next_scheduled_run_at INTEGER,
	crawl_period TEXT,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	CHECK (crawl_period IS NULL OR crawl_period GLOB '[0-9]*[hdwmy]')
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_categories_name ON categories(name);
CREATE INDEX IF NOT EXISTS idx_categories_schedule ON categories(schedule_enabled, next_scheduled_run_at);

-- Crawl job history
CREATE TABLE IF NOT EXISTS crawl_jobs (
	id TEXT PRIMARY KEY,
	category_id TEXT NOT NULL,
	status TEXT NOT NULL,
	priority INTEGER NOT NULL DEFAULT 5,
	retry_count INTEGER NOT NULL DEFAULT 0,
	job_type TEXT NOT NULL,
	external_task_id TEXT,
	start_date INTEGER,
	end_date INTEGER,
	max_results INTEGER,
	created_at INTEGER NOT NULL,
	started_at INTEGER,
	completed_at INTEGER,
	error_message TEXT,
	correlation_id TEXT,
	metadata TEXT,
	articles_found INTEGER NOT NULL DEFAULT 0,
	articles_saved INTEGER NOT NULL DEFAULT 0,
	CHECK (priority BETWEEN 0 AND 10),
	CHECK (retry_count BETWEEN 0 AND 10),
	FOREIGN KEY (category_id) REFERENCES categories(id) ON DELETE CASCADE
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_jobs_external_task ON crawl_jobs(external_task_id) WHERE external_task_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_jobs_status ON crawl_jobs(status, priority DESC, created_at ASC);
CREATE INDEX IF NOT EXISTS idx_jobs_category ON crawl_jobs(category_id, created_at DESC);

-- Deduplicated articles, keyed by URL hash
CREATE TABLE IF NOT EXISTS articles (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	content TEXT,
	author TEXT,
	publish_date INTEGER,
	image_url TEXT,
	source_url TEXT NOT NULL,
	url_hash TEXT NOT NULL,
	content_hash TEXT,
	keywords_matched TEXT,
	relevance_score REAL NOT NULL DEFAULT 0,
	last_seen INTEGER NOT NULL,
	crawl_job_id TEXT,
	created_at INTEGER NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_articles_url_hash ON articles(url_hash);
CREATE INDEX IF NOT EXISTS idx_articles_last_seen ON articles(last_seen DESC);
CREATE INDEX IF NOT EXISTS idx_articles_job ON articles(crawl_job_id);

-- Many-to-many article/category links with per-link relevance
CREATE TABLE IF NOT EXISTS article_categories (
	article_id TEXT NOT NULL,
	category_id TEXT NOT NULL,
	relevance_score REAL NOT NULL DEFAULT 0,
	PRIMARY KEY (article_id, category_id),
	FOREIGN KEY (article_id) REFERENCES articles(id) ON DELETE CASCADE,
	FOREIGN KEY (category_id) REFERENCES categories(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_links_category ON article_categories(category_id, relevance_score DESC);
`
