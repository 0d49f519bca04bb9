// Package database - Handles all interaction with ArangoDB
package database

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/Cognio-so/agt-tester/model"
	"github.com/arangodb/go-driver/v2/arangodb"
	"github.com/arangodb/go-driver/v2/connection"
	"github.com/cenkalti/backoff"
	"go.uber.org/zap"
)

// DBConnection is the structure that defined the database engine and collections
type DBConnection struct {
	Collections map[string]arangodb.Collection
	Database    arangodb.Database
}

// Options describes how to reach ArangoDB
type Options struct {
	URL      string
	User     string
	Password string
	Name     string
}

// Define a struct to hold the index definition
type indexConfig struct {
	Collection string
	IdxName    string
	IdxFields  []string
	Unique     bool
	Sparse     bool
}

var collectionNames = []string{
	model.CollectionUsers,
	model.CollectionChatHistories,
	model.CollectionGptAssignments,
	model.CollectionFavorites,
}

var idxList = []indexConfig{
	// users: email is the login identity and must be unique
	{Collection: model.CollectionUsers, IdxName: "users_email_unique", IdxFields: []string{"email"}, Unique: true},
	{Collection: model.CollectionUsers, IdxName: "users_google_id", IdxFields: []string{"google_id"}, Sparse: true},
	{Collection: model.CollectionUsers, IdxName: "users_verification_token", IdxFields: []string{"verification_token"}, Sparse: true},
	{Collection: model.CollectionUsers, IdxName: "users_reset_password_token", IdxFields: []string{"reset_password_token"}, Sparse: true},
	{Collection: model.CollectionUsers, IdxName: "users_created_at", IdxFields: []string{"created_at"}},

	// owned documents are always looked up and removed by owner
	{Collection: model.CollectionChatHistories, IdxName: "chat_histories_user_id", IdxFields: []string{"user_id"}},
	{Collection: model.CollectionGptAssignments, IdxName: "user_gpt_assignments_user_id", IdxFields: []string{"user_id"}},
	{Collection: model.CollectionFavorites, IdxName: "user_favorites_user_id", IdxFields: []string{"user_id"}},
}

func dbConnectionConfig(endpoint connection.Endpoint, dbuser string, dbpass string) connection.HttpConfiguration {
	return connection.HttpConfiguration{
		Authentication: connection.NewBasicAuth(dbuser, dbpass),
		Endpoint:       endpoint,
		ContentType:    connection.ApplicationJSON,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true, // #nosec G402
			},
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 90 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

// InitializeDatabase connects to the db engine with backoff retry, then creates
// the database, collections and indexes that are missing. Retries stop when
// ctx is cancelled.
func InitializeDatabase(ctx context.Context, opts Options, logger *zap.Logger) (DBConnection, error) {
	const initialInterval = 10 * time.Second
	const maxInterval = 2 * time.Minute

	var client arangodb.Client

	//
	// Database connection with backoff retry
	//

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = initialInterval
	bo.MaxInterval = maxInterval
	bo.MaxElapsedTime = 0 // retry until ctx is done

	err := backoff.RetryNotify(func() error {
		logger.Info("Attempting to connect to ArangoDB", zap.String("url", opts.URL))
		endpoint := connection.NewRoundRobinEndpoints([]string{opts.URL})
		conn := connection.NewHttpConnection(dbConnectionConfig(endpoint, opts.User, opts.Password))

		client = arangodb.NewClient(conn)

		versionInfo, err := client.Version(ctx)
		if err != nil {
			return err
		}

		logger.Sugar().Infof("Database has version '%s' and license '%s'", versionInfo.Version, versionInfo.License)
		return nil
	}, backoff.WithContext(bo, ctx), func(err error, wait time.Duration) {
		logger.Warn("Retrying connection to ArangoDB", zap.Error(err), zap.Duration("wait", wait))
	})
	if err != nil {
		return DBConnection{}, fmt.Errorf("connect to arangodb: %w", err)
	}

	//
	// Database creation
	//

	db, err := ensureDatabase(ctx, client, opts.Name)
	if err != nil {
		return DBConnection{}, err
	}

	//
	// Collection creation for document storage
	//

	collections := make(map[string]arangodb.Collection, len(collectionNames))
	for _, collectionName := range collectionNames {
		var col arangodb.Collection

		exists, _ := db.CollectionExists(ctx, collectionName)
		if exists {
			var options arangodb.GetCollectionOptions
			if col, err = db.GetCollection(ctx, collectionName, &options); err != nil {
				return DBConnection{}, fmt.Errorf("use collection %s: %w", collectionName, err)
			}
		} else {
			if col, err = db.CreateCollectionV2(ctx, collectionName, nil); err != nil {
				return DBConnection{}, fmt.Errorf("create collection %s: %w", collectionName, err)
			}
		}

		collections[collectionName] = col
	}

	//
	// Index creation
	//

	for _, idx := range idxList {
		if err := ensureIndex(ctx, collections[idx.Collection], idx, logger); err != nil {
			return DBConnection{}, err
		}
	}

	logger.Info("Database initialization complete", zap.String("database", opts.Name))

	return DBConnection{
		Database:    db,
		Collections: collections,
	}, nil
}

func ensureDatabase(ctx context.Context, client arangodb.Client, name string) (arangodb.Database, error) {
	dblist, err := client.Databases(ctx)
	if err != nil {
		return nil, fmt.Errorf("list databases: %w", err)
	}

	exists := false
	for _, dbinfo := range dblist {
		if dbinfo.Name() == name {
			exists = true
			break
		}
	}

	if exists {
		var options arangodb.GetDatabaseOptions
		db, err := client.GetDatabase(ctx, name, &options)
		if err != nil {
			return nil, fmt.Errorf("get database: %w", err)
		}
		return db, nil
	}

	db, err := client.CreateDatabase(ctx, name, nil)
	if err != nil {
		return nil, fmt.Errorf("create database: %w", err)
	}
	return db, nil
}

func ensureIndex(ctx context.Context, col arangodb.Collection, idx indexConfig, logger *zap.Logger) error {
	if indexes, err := col.Indexes(ctx); err == nil {
		for _, index := range indexes {
			if idx.IdxName == index.Name {
				return nil
			}
		}
	}

	unique, sparse := idx.Unique, idx.Sparse
	indexOptions := arangodb.CreatePersistentIndexOptions{
		Unique: &unique,
		Sparse: &sparse,
		Name:   idx.IdxName,
	}

	if _, _, err := col.EnsurePersistentIndex(ctx, idx.IdxFields, &indexOptions); err != nil {
		return fmt.Errorf("create index %s: %w", idx.IdxName, err)
	}
	logger.Sugar().Infof("Created index: %s on %s.%v", idx.IdxName, idx.Collection, idx.IdxFields)
	return nil
}
