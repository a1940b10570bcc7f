package db

const feedIndexViewsV2 = `
CREATE VIEW IF NOT EXISTS messages AS
SELECT
    messages_raw.flume_seq     AS flume_seq,
    messages_raw.key_id        AS key_id,
    messages_raw.seq           AS seq,
    messages_raw.received_time AS received_time,
    messages_raw.asserted_time AS asserted_time,
    messages_raw.root_id       AS root_id,
    messages_raw.fork_id       AS fork_id,
    messages_raw.author_id     AS author_id,
    messages_raw.content       AS content,
    messages_raw.content_type  AS content_type,
    messages_raw.is_decrypted  AS is_decrypted,
    keys.key                   AS key,
    root_keys.key              AS root,
    fork_keys.key              AS fork,
    authors.author             AS author
FROM messages_raw
JOIN keys ON keys.id = messages_raw.key_id
LEFT JOIN keys AS root_keys ON root_keys.id = messages_raw.root_id
LEFT JOIN keys AS fork_keys ON fork_keys.id = messages_raw.fork_id
JOIN authors ON authors.id = messages_raw.author_id;

CREATE VIEW IF NOT EXISTS links AS
SELECT
    links_raw.id               AS id,
    links_raw.link_from_key_id AS link_from_key_id,
    links_raw.link_to_key_id   AS link_to_key_id,
    keys.key                   AS link_from_key,
    keys2.key                  AS link_to_key
FROM links_raw
JOIN keys ON keys.id = links_raw.link_from_key_id
JOIN keys AS keys2 ON keys2.id = links_raw.link_to_key_id;

CREATE VIEW IF NOT EXISTS mentions AS
SELECT
    mentions_raw.id                AS id,
    mentions_raw.link_from_key_id  AS link_from_key_id,
    mentions_raw.link_to_author_id AS link_to_author_id,
    keys.key                       AS link_from,
    authors.author                 AS link_to,
    messages_raw.flume_seq         AS flume_seq
FROM mentions_raw
JOIN keys ON keys.id = mentions_raw.link_from_key_id
JOIN authors ON authors.id = mentions_raw.link_to_author_id
JOIN messages_raw ON messages_raw.key_id = mentions_raw.link_from_key_id;

CREATE VIEW IF NOT EXISTS blob_links AS
SELECT
    blob_links_raw.id               AS id,
    blob_links_raw.link_from_key_id AS link_from_key_id,
    blob_links_raw.link_to_blob_id  AS link_to_blob_id,
    keys.key                        AS link_from_key,
    blobs.blob                      AS link_to_blob
FROM blob_links_raw
JOIN keys ON keys.id = blob_links_raw.link_from_key_id
JOIN blobs ON blobs.id = blob_links_raw.link_to_blob_id;

CREATE VIEW IF NOT EXISTS abouts AS
SELECT
    abouts_raw.id                AS id,
    abouts_raw.link_from_key_id  AS link_from_key_id,
    abouts_raw.link_to_key_id    AS link_to_key_id,
    abouts_raw.link_to_author_id AS link_to_author_id,
    keys_from.key                AS link_from_key,
    keys_to.key                  AS link_to_key,
    authors_to.author            AS link_to_author,
    messages.content             AS content,
    messages.flume_seq           AS flume_seq
FROM abouts_raw
JOIN keys AS keys_from ON keys_from.id = abouts_raw.link_from_key_id
JOIN messages ON messages.key_id = abouts_raw.link_from_key_id
LEFT JOIN keys AS keys_to ON keys_to.id = abouts_raw.link_to_key_id
LEFT JOIN authors AS authors_to ON authors_to.id = abouts_raw.link_to_author_id;
`
