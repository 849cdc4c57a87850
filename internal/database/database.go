package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
)

// Record is the persisted correlation between a transcription job and the
// audio object it was started from. It is what a completion event resolves
// against, by exact job_id match.
type Record struct {
	JobID       string  `json:"job_id" dynamodbav:"job_id"`
	S3URI       string  `json:"s3_uri" dynamodbav:"s3_uri"`
	CreatedAt   string  `json:"created_at" dynamodbav:"created_at"`
	JobStatus   string  `json:"job_status" dynamodbav:"job_status"`
	MessageText *string `json:"message_text" dynamodbav:"message_text"`
	MessageID   string  `json:"message_id,omitempty" dynamodbav:"message_id,omitempty"`
}

// PersistError reports a failed correlation-record write or read. A write
// failure after submission means a server-side job is running with no local
// record, so callers must surface it loudly.
type PersistError struct {
	JobID string
	Err   error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist correlation record for job %q: %v", e.JobID, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// NotFoundError is returned for an unknown job id.
type NotFoundError struct {
	JobID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no correlation record for job %q", e.JobID)
}

// Store reads and writes correlation records in a DynamoDB table keyed on
// job_id.
type Store struct {
	db     dynamodbiface.DynamoDBAPI
	table  string
	now    func() time.Time
	logger *slog.Logger
}

func NewStore(db dynamodbiface.DynamoDBAPI, table string, logger *slog.Logger) *Store {
	return &Store{db: db, table: table, now: time.Now, logger: logger}
}

// WithClock overrides the creation-time source. Tests use it to fix
// created_at.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// CreateRecord inserts exactly one record linking jobID to s3URI, stamping
// created_at at insertion time. The conditional put rejects a second record
// for the same job id. messageID may be empty.
func (s *Store) CreateRecord(ctx context.Context, s3URI, jobID, messageID string) (Record, error) {
	if jobID == "" {
		return Record{}, &PersistError{JobID: jobID, Err: fmt.Errorf("empty job id")}
	}
	if s3URI == "" {
		return Record{}, &PersistError{JobID: jobID, Err: fmt.Errorf("empty s3 uri")}
	}

	rec := Record{
		JobID:     jobID,
		S3URI:     s3URI,
		CreatedAt: s.now().UTC().Format(time.RFC3339),
		JobStatus: "IN_PROGRESS",
		MessageID: messageID,
	}

	av, err := dynamodbattribute.MarshalMap(rec)
	if err != nil {
		return Record{}, &PersistError{JobID: jobID, Err: err}
	}

	_, err = s.db.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		Item:                av,
		TableName:           aws.String(s.table),
		ConditionExpression: aws.String("attribute_not_exists(job_id)"),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == dynamodb.ErrCodeConditionalCheckFailedException {
			return Record{}, &PersistError{JobID: jobID, Err: fmt.Errorf("job id already recorded: %w", err)}
		}
		return Record{}, &PersistError{JobID: jobID, Err: err}
	}

	s.logger.Info("correlation record created",
		slog.String("job_id", rec.JobID),
		slog.String("s3_uri", rec.S3URI),
		slog.String("created_at", rec.CreatedAt),
	)
	return rec, nil
}

// GetRecord looks up the record for jobID.
func (s *Store) GetRecord(ctx context.Context, jobID string) (Record, error) {
	result, err := s.db.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]*dynamodb.AttributeValue{
			"job_id": {S: aws.String(jobID)},
		},
	})
	if err != nil {
		return Record{}, &PersistError{JobID: jobID, Err: err}
	}
	if result.Item == nil {
		return Record{}, &NotFoundError{JobID: jobID}
	}

	var rec Record
	if err := dynamodbattribute.UnmarshalMap(result.Item, &rec); err != nil {
		return Record{}, &PersistError{JobID: jobID, Err: err}
	}
	return rec, nil
}

// SetStatus updates job_status on an existing record. Used by the completion
// receiver, never by the submission pipeline.
func (s *Store) SetStatus(ctx context.Context, jobID, status string) error {
	_, err := s.db.UpdateItemWithContext(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.table),
		Key: map[string]*dynamodb.AttributeValue{
			"job_id": {S: aws.String(jobID)},
		},
		ConditionExpression: aws.String("attribute_exists(job_id)"),
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":s": {S: aws.String(status)},
		},
		UpdateExpression: aws.String("set job_status = :s"),
		ReturnValues:     aws.String("UPDATED_NEW"),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == dynamodb.ErrCodeConditionalCheckFailedException {
			return &NotFoundError{JobID: jobID}
		}
		return &PersistError{JobID: jobID, Err: err}
	}
	return nil
}
