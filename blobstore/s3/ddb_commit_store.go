package s3

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/knowgo/knowgo/blobstore"
)

// CurrentPointer is the reserved blob name whose content names the latest
// committed snapshot blob.
const CurrentPointer = "CURRENT"

// ErrConcurrentModification is returned when another writer committed a new
// snapshot version between read and commit.
var ErrConcurrentModification = errors.New("concurrent modification detected")

// DDBClient is the subset of the DynamoDB API the commit store uses.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DDBCommitStore implements blobstore.Store backed by S3 with DynamoDB for
// atomic snapshot commits, enabling safe concurrent writers.
//
// S3 lacks compare-and-swap, so the CURRENT pointer is kept in DynamoDB:
// snapshot blobs go to S3 under versioned names, and a conditional write
// advances the pointer. A losing writer gets ErrConcurrentModification
// instead of silently clobbering the winner's snapshot.
//
// Table schema:
//   - Partition key: base_uri (string), the S3 prefix of this store
//   - Sort key: version (number), monotonically increasing
//
// Create the table with:
//
//	aws dynamodb create-table \
//	  --table-name knowgo-commits \
//	  --attribute-definitions AttributeName=base_uri,AttributeType=S AttributeName=version,AttributeType=N \
//	  --key-schema AttributeName=base_uri,KeyType=HASH AttributeName=version,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type DDBCommitStore struct {
	blobs     blobstore.Store
	ddbClient DDBClient
	tableName string
	baseURI   string // partition key, e.g. "s3://bucket/prefix"
}

// Compile-time check that DDBCommitStore satisfies the store contract.
var _ blobstore.Store = (*DDBCommitStore)(nil)

// NewDDBCommitStore wraps blobs with DynamoDB-coordinated commits.
// baseURI identifies this store in the commit table, "s3://bucket/prefix".
func NewDDBCommitStore(blobs blobstore.Store, ddbClient DDBClient, tableName, baseURI string) *DDBCommitStore {
	return &DDBCommitStore{
		blobs:     blobs,
		ddbClient: ddbClient,
		tableName: tableName,
		baseURI:   baseURI,
	}
}

// Put writes a blob. Writes to CurrentPointer go through a DynamoDB
// conditional write; everything else goes straight to S3.
func (s *DDBCommitStore) Put(ctx context.Context, name string, data []byte) error {
	if name == CurrentPointer {
		return s.commitVersion(ctx, string(data))
	}
	return s.blobs.Put(ctx, name, data)
}

// Get returns the blob stored under name. Reads of CurrentPointer resolve
// against the latest committed version in DynamoDB.
func (s *DDBCommitStore) Get(ctx context.Context, name string) ([]byte, error) {
	if name == CurrentPointer {
		version, snapshotName, err := s.latestVersion(ctx)
		if err != nil {
			return nil, err
		}
		if version == 0 {
			return nil, blobstore.ErrNotFound
		}
		return []byte(snapshotName), nil
	}
	return s.blobs.Get(ctx, name)
}

// Delete removes a blob from S3. Committed versions stay in DynamoDB.
func (s *DDBCommitStore) Delete(ctx context.Context, name string) error {
	return s.blobs.Delete(ctx, name)
}

// List lists S3 blobs with the given prefix.
func (s *DDBCommitStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.blobs.List(ctx, prefix)
}

// latestVersion queries DynamoDB for the latest committed version.
func (s *DDBCommitStore) latestVersion(ctx context.Context) (uint64, string, error) {
	resp, err := s.ddbClient.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("base_uri = :uri"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uri": &types.AttributeValueMemberS{Value: s.baseURI},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return 0, "", fmt.Errorf("s3: query commit table: %w", err)
	}

	if len(resp.Items) == 0 {
		return 0, "", nil
	}

	item := resp.Items[0]
	versionAttr, ok := item["version"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, "", errors.New("s3: invalid version attribute in commit table")
	}
	nameAttr, ok := item["snapshot_name"].(*types.AttributeValueMemberS)
	if !ok {
		return 0, "", errors.New("s3: invalid snapshot_name attribute in commit table")
	}

	var version uint64
	if _, err := fmt.Sscanf(versionAttr.Value, "%d", &version); err != nil {
		return 0, "", fmt.Errorf("s3: parse version: %w", err)
	}

	return version, nameAttr.Value, nil
}

// commitVersion atomically advances the CURRENT pointer with a DynamoDB
// conditional write.
func (s *DDBCommitStore) commitVersion(ctx context.Context, snapshotName string) error {
	currentVersion, _, err := s.latestVersion(ctx)
	if err != nil {
		return err
	}

	newVersion := currentVersion + 1

	_, err = s.ddbClient.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			"base_uri":      &types.AttributeValueMemberS{Value: s.baseURI},
			"version":       &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", newVersion)},
			"snapshot_name": &types.AttributeValueMemberS{Value: snapshotName},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrConcurrentModification
		}
		return fmt.Errorf("s3: commit version: %w", err)
	}

	return nil
}
