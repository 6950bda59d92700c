package database_test

import (
	"fmt"
	"os"
	"testing"

	"github.com/kaspanet/btcconsensus/infrastructure/db/database"
	"github.com/kaspanet/btcconsensus/infrastructure/db/database/ldb"
)

type databasePrepareFunc func(t *testing.T, testName string) (db database.Database, name string, teardownFunc func())

// databasePrepareFuncs is a set of functions, in which each function
// prepares a separate database type for testing.
// See testForAllDatabaseTypes for further details.
var databasePrepareFuncs = []databasePrepareFunc{
	prepareLDBForTest,
}

func prepareLDBForTest(t *testing.T, testName string) (db database.Database, name string, teardownFunc func()) {
	// Create a temp db to run tests against
	path, err := os.MkdirTemp("", testName)
	if err != nil {
		t.Fatalf("%s: TempDir unexpectedly "+
			"failed: %s", testName, err)
	}
	db, err = ldb.NewLevelDB(path, 8)
	if err != nil {
		t.Fatalf("%s: Open unexpectedly "+
			"failed: %s", testName, err)
	}
	teardownFunc = func() {
		err = db.Close()
		if err != nil {
			t.Fatalf("%s: Close unexpectedly "+
				"failed: %s", testName, err)
		}
	}
	return db, "ldb", teardownFunc
}

// testForAllDatabaseTypes runs the given testFunc for every database
// type defined in databasePrepareFuncs. This is to make sure that
// all supported database types adhere to the assumptions defined in
// the interfaces in this package.
func testForAllDatabaseTypes(t *testing.T, testName string,
	testFunc func(t *testing.T, db database.Database, testName string)) {

	for _, prepareDatabase := range databasePrepareFuncs {
		func() {
			db, dbType, teardownFunc := prepareDatabase(t, testName)
			defer teardownFunc()

			testName := fmt.Sprintf("%s: %s", dbType, testName)
			testFunc(t, db, testName)
		}()
	}
}

type keyValuePair struct {
	key   *database.Key
	value []byte
}

func populateDatabaseForTest(t *testing.T, db database.Database, testName string) []keyValuePair {
	// Prepare a list of key/value pairs
	entries := make([]keyValuePair, 10)
	for i := 0; i < 10; i++ {
		key := database.MakeBucket(nil).Key([]byte(fmt.Sprintf("key%d", i)))
		value := []byte("value")
		entries[i] = keyValuePair{key: key, value: value}
	}

	// Put the pairs into the database
	for _, entry := range entries {
		err := db.Put(entry.key, entry.value)
		if err != nil {
			t.Fatalf("%s: Put unexpectedly "+
				"failed: %s", testName, err)
		}
	}

	return entries
}

func TestDatabaseCursorCoversBucket(t *testing.T) {
	testForAllDatabaseTypes(t, "TestDatabaseCursorCoversBucket", testDatabaseCursorCoversBucket)
}

func testDatabaseCursorCoversBucket(t *testing.T, db database.Database, testName string) {
	entries := populateDatabaseForTest(t, db, testName)

	// A key in another bucket must not show up
	err := db.Put(database.MakeBucket([]byte("other")).Key([]byte("key")), []byte("value"))
	if err != nil {
		t.Fatalf("%s: Put unexpectedly failed: %s", testName, err)
	}

	cursor, err := db.Cursor(database.MakeBucket(nil))
	if err != nil {
		t.Fatalf("%s: Cursor unexpectedly failed: %s", testName, err)
	}
	defer cursor.Close()

	count := 0
	for ok := cursor.First(); ok; ok = cursor.Next() {
		count++
	}
	if count != len(entries) {
		t.Fatalf("%s: Expected %d entries, found: %d", testName, len(entries), count)
	}
}

func TestDatabaseTransactionCommit(t *testing.T) {
	testForAllDatabaseTypes(t, "TestDatabaseTransactionCommit", testDatabaseTransactionCommit)
}

func testDatabaseTransactionCommit(t *testing.T, db database.Database, testName string) {
	entries := populateDatabaseForTest(t, db, testName)

	dbTx, err := db.Begin()
	if err != nil {
		t.Fatalf("%s: Begin unexpectedly failed: %s", testName, err)
	}
	for _, entry := range entries {
		err := dbTx.Delete(entry.key)
		if err != nil {
			t.Fatalf("%s: Delete unexpectedly failed: %s", testName, err)
		}
	}

	// The deletions are not applied until the commit
	exists, err := db.Has(entries[0].key)
	if err != nil {
		t.Fatalf("%s: Has unexpectedly failed: %s", testName, err)
	}
	if !exists {
		t.Fatalf("%s: key was deleted before the commit", testName)
	}

	err = dbTx.Commit()
	if err != nil {
		t.Fatalf("%s: Commit unexpectedly failed: %s", testName, err)
	}
	for _, entry := range entries {
		_, err := db.Get(entry.key)
		if !database.IsNotFoundError(err) {
			t.Fatalf("%s: Expected %s to be deleted, found error: %v", testName, entry.key, err)
		}
	}
}
