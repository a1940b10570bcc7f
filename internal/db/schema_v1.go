package db

const feedIndexSchemaV1 = `
CREATE TABLE IF NOT EXISTS keys (
    id   INTEGER PRIMARY KEY,
    key  TEXT UNIQUE NOT NULL
);

CREATE TABLE IF NOT EXISTS authors (
    id     INTEGER PRIMARY KEY,
    author TEXT UNIQUE NOT NULL,
    is_me  BOOLEAN NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS authors_is_me_index ON authors(is_me);

CREATE TABLE IF NOT EXISTS messages_raw (
    flume_seq     INTEGER PRIMARY KEY,
    key_id        INTEGER UNIQUE NOT NULL,
    seq           INTEGER NOT NULL,
    received_time REAL,
    asserted_time REAL NOT NULL,
    root_id       INTEGER,
    fork_id       INTEGER,
    author_id     INTEGER NOT NULL,
    content_type  TEXT,
    content       JSON NOT NULL,
    is_decrypted  BOOLEAN NOT NULL DEFAULT 0,

    FOREIGN KEY (key_id)    REFERENCES keys(id),
    FOREIGN KEY (root_id)   REFERENCES keys(id),
    FOREIGN KEY (fork_id)   REFERENCES keys(id),
    FOREIGN KEY (author_id) REFERENCES authors(id)
);

CREATE INDEX IF NOT EXISTS author_id_index    ON messages_raw(author_id);
CREATE INDEX IF NOT EXISTS root_id_index      ON messages_raw(root_id);
CREATE INDEX IF NOT EXISTS content_type_index ON messages_raw(content_type);
CREATE INDEX IF NOT EXISTS is_decrypted_index ON messages_raw(is_decrypted);

CREATE TABLE IF NOT EXISTS links_raw (
    id               INTEGER PRIMARY KEY,
    link_from_key_id INTEGER NOT NULL,
    link_to_key_id   INTEGER NOT NULL,
    UNIQUE (link_from_key_id, link_to_key_id),

    FOREIGN KEY (link_from_key_id) REFERENCES keys(id),
    FOREIGN KEY (link_to_key_id)   REFERENCES keys(id)
);

CREATE INDEX IF NOT EXISTS links_to_id_index ON links_raw(link_to_key_id, link_from_key_id);

CREATE TABLE IF NOT EXISTS mentions_raw (
    id                INTEGER PRIMARY KEY,
    link_from_key_id  INTEGER NOT NULL,
    link_to_author_id INTEGER NOT NULL,
    UNIQUE (link_from_key_id, link_to_author_id),

    FOREIGN KEY (link_from_key_id)  REFERENCES keys(id),
    FOREIGN KEY (link_to_author_id) REFERENCES authors(id)
);

CREATE INDEX IF NOT EXISTS mentions_id_index ON mentions_raw(link_to_author_id, link_from_key_id);

CREATE TABLE IF NOT EXISTS blobs (
    id   INTEGER PRIMARY KEY,
    blob TEXT UNIQUE NOT NULL
);

CREATE TABLE IF NOT EXISTS blob_links_raw (
    id               INTEGER PRIMARY KEY,
    link_from_key_id INTEGER NOT NULL,
    link_to_blob_id  INTEGER NOT NULL,
    UNIQUE (link_from_key_id, link_to_blob_id),

    FOREIGN KEY (link_from_key_id) REFERENCES keys(id),
    FOREIGN KEY (link_to_blob_id)  REFERENCES blobs(id)
);

CREATE INDEX IF NOT EXISTS blob_links_index ON blob_links_raw(link_to_blob_id, link_from_key_id);

CREATE TABLE IF NOT EXISTS branches_raw (
    id               INTEGER PRIMARY KEY,
    link_from_key_id INTEGER NOT NULL,
    link_to_key_id   INTEGER NOT NULL,
    UNIQUE (link_from_key_id, link_to_key_id),

    FOREIGN KEY (link_from_key_id) REFERENCES keys(id),
    FOREIGN KEY (link_to_key_id)   REFERENCES keys(id)
);

CREATE INDEX IF NOT EXISTS branches_to_id_index ON branches_raw(link_to_key_id);

CREATE TABLE IF NOT EXISTS contacts_raw (
    id                INTEGER PRIMARY KEY,
    author_id         INTEGER NOT NULL,
    contact_author_id INTEGER NOT NULL,
    is_decrypted      BOOLEAN NOT NULL DEFAULT 0,
    state             INTEGER NOT NULL CHECK(state IN (-1, 0, 1)),
    UNIQUE (author_id, contact_author_id, is_decrypted),

    FOREIGN KEY (author_id)         REFERENCES authors(id),
    FOREIGN KEY (contact_author_id) REFERENCES authors(id)
);

CREATE INDEX IF NOT EXISTS contacts_raw_contact_author_id_index ON contacts_raw(contact_author_id);
CREATE INDEX IF NOT EXISTS contacts_raw_author_id_state_index   ON contacts_raw(author_id, state);

CREATE TABLE IF NOT EXISTS abouts_raw (
    id                INTEGER PRIMARY KEY,
    link_from_key_id  INTEGER NOT NULL,
    link_to_author_id INTEGER,
    link_to_key_id    INTEGER,

    FOREIGN KEY (link_from_key_id)  REFERENCES keys(id),
    FOREIGN KEY (link_to_author_id) REFERENCES authors(id),
    FOREIGN KEY (link_to_key_id)    REFERENCES keys(id)
);

CREATE INDEX IF NOT EXISTS abouts_raw_from_index   ON abouts_raw(link_from_key_id);
CREATE INDEX IF NOT EXISTS abouts_raw_key_index    ON abouts_raw(link_to_key_id);
CREATE INDEX IF NOT EXISTS abouts_raw_author_index ON abouts_raw(link_to_author_id);
`
