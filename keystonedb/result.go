//
// Copyright (c) 2023, 2025 Keystone Data and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package keystonedb

import (
	"context"
	"time"

	"github.com/keystonedata/keystone-go-sdk/keystonedb/jsonutil"
	"github.com/keystonedata/keystone-go-sdk/keystonedb/kverr"
	"github.com/keystonedata/keystone-go-sdk/keystonedb/types"
)

// Result interface defines common functions for operation results.
type Result interface {
	// ConsumedCapacity returns the read/write throughput consumed by an
	// operation. It returns an error for on-premise deployments that do not
	// report capacity.
	ConsumedCapacity() (Capacity, error)

	// Delayed returns information about how long an operation was delayed
	// inside the client, by rate limiting or retries, before it succeeded.
	Delayed() *DelayInfo
}

// Capacity represents the read/write throughput consumed by an operation.
type Capacity struct {
	// ReadKB represents the number of kilobytes consumed for reads.
	ReadKB int

	// WriteKB represents the number of kilobytes consumed for writes.
	WriteKB int

	// ReadUnits represents the number of read units consumed for reads.
	//
	// A read unit represents 1 eventually consistent read per second for
	// data up to 1 KB in size. A read that is absolutely consistent is twice
	// as expensive as an eventually consistent read, so a request with
	// absolute consistency may consume twice the number of read units as
	// its ReadKB.
	ReadUnits int

	// WriteUnits represents the number of write units consumed for writes.
	//
	// A write unit represents 1 write per second of data up to 1 KB in size.
	WriteUnits int
}

// String returns a JSON string representation of the Capacity.
func (r Capacity) String() string {
	return jsonutil.AsJSON(r)
}

// ConsumedCapacity returns the consumed capacity.
// It satisfies the Result interface for results that embed Capacity.
func (r Capacity) ConsumedCapacity() (Capacity, error) {
	return r, nil
}

// noCapacity is embedded in results of operations that do not report
// consumed capacity, such as DDL operations.
type noCapacity struct{}

// ConsumedCapacity returns an error indicating the operation does not
// report consumed capacity.
func (r noCapacity) ConsumedCapacity() (Capacity, error) {
	return Capacity{}, kverr.New(kverr.IllegalState, "operation does not return consumed capacity")
}

// DelayInfo records the time an operation was delayed inside the client
// before it completed.
type DelayInfo struct {
	// RateLimitTime is the total time the operation waited on client-side
	// rate limiters.
	RateLimitTime time.Duration

	// RetryTime is the total time the operation spent waiting between
	// retries.
	RetryTime time.Duration
}

// Delayed returns the delay information for the operation.
// It satisfies the Result interface for results that embed DelayInfo.
func (d *DelayInfo) Delayed() *DelayInfo {
	return d
}

// GetResult represents a result returned from Client.Get() operation.
// It contains the row of data matched by the request, if any.
type GetResult struct {
	Capacity

	// Value represents the value of the returned row, or nil if the row
	// does not exist.
	Value *types.MapValue

	// Version represents the version of the returned row, or nil if the
	// row does not exist.
	Version types.Version

	// ExpirationTime represents the expiration time of the row.
	//
	// A zero value of time.Time indicates the row exists but has no
	// expiration time, or the row does not exist.
	ExpirationTime time.Time

	// ModificationTime represents the last time the row was modified.
	// It is only reported by servers supporting protocol version 2 and
	// above; otherwise it is the zero value of time.Time.
	ModificationTime time.Time

	DelayInfo
}

// RowExists checks if the desired row exists.
// It returns true if the get operation found the row with the specified key,
// returns false otherwise.
func (r GetResult) RowExists() bool {
	return r.Value != nil
}

// String returns a JSON string representation of the GetResult.
func (r GetResult) String() string {
	return jsonutil.AsJSON(r.Value)
}

// WriteResult contains information about the existing row, returned from
// put or delete operations that fail a condition with ReturnRow set.
type WriteResult struct {
	// ExistingVersion represents the version of the existing row.
	ExistingVersion types.Version

	// ExistingValue represents the value of the existing row.
	ExistingValue *types.MapValue

	// ExistingModificationTime represents the last time the existing row
	// was modified. It is only reported by servers supporting protocol
	// version 2 and above.
	ExistingModificationTime time.Time
}

// PutResult represents a result returned from Client.Put() operation.
type PutResult struct {
	Capacity
	WriteResult

	// Version represents the version of the new row if the put operation
	// was successful, or nil if the operation failed its condition.
	Version types.Version

	DelayInfo
}

// Success checks if the put operation was successful.
func (r PutResult) Success() bool {
	return r.Version != nil
}

// String returns a JSON string representation of the PutResult.
func (r PutResult) String() string {
	return jsonutil.AsJSON(struct {
		Success bool
	}{r.Success()})
}

// DeleteResult represents a result returned from Client.Delete() operation.
type DeleteResult struct {
	Capacity
	WriteResult

	// Success indicates whether the delete operation succeeded, that is
	// the specified row was found and deleted.
	Success bool

	DelayInfo
}

// String returns a JSON string representation of the DeleteResult.
func (r DeleteResult) String() string {
	return jsonutil.AsJSON(struct {
		Success bool
	}{r.Success})
}

// MultiDeleteResult represents a result returned from Client.MultiDelete()
// operation.
type MultiDeleteResult struct {
	Capacity

	// ContinuationKey represents the continuation key indicating where the
	// next MultiDelete request should resume from.
	// It is nil if the operation is complete.
	ContinuationKey []byte

	// NumDeleted represents the number of rows deleted by the operation.
	NumDeleted int

	DelayInfo
}

// String returns a JSON string representation of the MultiDeleteResult.
func (r MultiDeleteResult) String() string {
	return jsonutil.AsJSON(struct {
		NumDeleted int
	}{r.NumDeleted})
}

// PrepareResult represents a result returned from Client.Prepare()
// operation.
type PrepareResult struct {
	Capacity

	// PreparedStatement represents the value of the prepared statement.
	PreparedStatement PreparedStatement

	DelayInfo
}

// QueryResult represents a result returned from Client.Query() operation.
//
// It comprises a list of MapValue instances representing the query results.
// The shape of the values is based on the schema implied by the query.
//
// The results are computed lazily. The first call to GetResults() or
// ConsumedCapacity() drives the underlying query far enough to produce one
// batch of results in the query's order.
type QueryResult struct {
	request *QueryRequest

	// computed indicates whether the query results have been computed.
	computed bool

	// results holds the computed query results.
	results []*types.MapValue

	// continuationKey of a simple query, passed back to the server on the
	// next execution.
	continuationKey []byte

	Capacity
	DelayInfo

	// err holds the error occurred during result computation, if any.
	err error
}

func newQueryResult(req *QueryRequest, computed bool) *QueryResult {
	return &QueryResult{
		request:  req,
		computed: computed,
	}
}

// GetResults returns a slice of results for the query.
//
// It is possible to have an empty slice returned while the query is not
// complete. This happens when the query reads a batch worth of data none of
// which satisfies the query predicates. Keep executing the query until
// QueryRequest.IsDone() reports completion.
func (r *QueryResult) GetResults() ([]*types.MapValue, error) {
	if err := r.compute(); err != nil {
		return nil, err
	}
	return r.results, nil
}

// ConsumedCapacity returns the capacity consumed by this batch of the
// query, computing the batch first if needed.
func (r *QueryResult) ConsumedCapacity() (Capacity, error) {
	if err := r.compute(); err != nil {
		return Capacity{}, err
	}
	return r.Capacity, nil
}

// compute drives the query driver to produce this batch of results.
func (r *QueryResult) compute() error {
	if r.computed {
		return r.err
	}

	r.computed = true
	if r.request == nil || r.request.driver == nil {
		r.err = kverr.NewIllegalState("query result is not associated with a query driver")
		return r.err
	}

	r.err = r.request.driver.compute(r)
	return r.err
}

func (r *QueryResult) getContinuationKey() []byte {
	return r.continuationKey
}

// TableResult represents the result of a Client.DoTableRequest() operation.
// It is also the result of a Client.GetTable() operation, which retrieves
// information of a specific table.
type TableResult struct {
	noCapacity

	// TableName represents the name of the table.
	TableName string

	// State represents the current state of the table.
	State types.TableState

	// Limits represents the provisioned throughput and storage limits of
	// the table.
	Limits TableLimits

	// Schema represents the schema of the table, in JSON.
	// It is empty if the server does not report a schema.
	Schema string

	// OperationID represents the operation id for an asynchronous
	// operation. This is empty if the request did not generate a new
	// operation. The value can be used in GetTableRequest.OperationID to
	// find the status of the operation at a later time.
	OperationID string

	DelayInfo
}

// String returns a JSON string representation of the TableResult.
func (r TableResult) String() string {
	return jsonutil.AsJSON(struct {
		TableName string
		State     string
		Limits    TableLimits
	}{r.TableName, r.State.String(), r.Limits})
}

// WaitForCompletion waits for a table operation to complete.
//
// Table operations are asynchronous. This is a blocking, polling style wait
// that pauses the current goroutine for the specified pollInterval and polls
// the server for the state of the table until the operation committed by this
// TableResult reaches a terminal state, or the specified timeout elapses.
//
// This instance must be the return value of a previous
// Client.DoTableRequest() and contain a non-nil operation id representing
// the in-progress operation, unless the operation has already completed.
//
// The timeout must be greater than or equal to the pollInterval, and the
// pollInterval must be at least one millisecond. If pollInterval is 0 it
// defaults to 500 milliseconds.
func (r *TableResult) WaitForCompletion(client *Client, timeout, pollInterval time.Duration) (*TableResult, error) {
	if r.State.IsTerminal() {
		return r, nil
	}

	if client == nil {
		return nil, kverr.NewIllegalArgument("client must be non-nil")
	}

	if err := validateWaitTimeout(timeout, &pollInterval); err != nil {
		return nil, err
	}

	req := &GetTableRequest{
		TableName:   r.TableName,
		OperationID: r.OperationID,
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	res := r
	for !res.State.IsTerminal() {
		if err := shouldRetryAfter(ctx, pollInterval); err != nil {
			return nil, kverr.NewRequestTimeout(
				"operation on table %s did not complete within %v: %v", r.TableName, timeout, err)
		}

		var err error
		res, err = client.GetTable(req)
		if err != nil {
			return nil, err
		}
	}

	return res, nil
}

// ListTablesResult represents the result of a Client.ListTables() operation.
type ListTablesResult struct {
	noCapacity

	// Tables represents a slice of available table names.
	Tables []string

	// LastIndexReturned represents the index of the last table name
	// returned. This can be used in the ListTablesRequest.StartIndex
	// parameter to page table names.
	LastIndexReturned uint

	DelayInfo
}

// String returns a JSON string representation of the ListTablesResult.
func (r ListTablesResult) String() string {
	return jsonutil.AsJSON(struct {
		Tables []string
	}{r.Tables})
}

// SystemStatusResult represents the result of a Client.GetSystemStatus()
// operation. It encapsulates the state of an administrative operation
// performed by the server.
type SystemStatusResult struct {
	noCapacity

	// State represents the current state of the operation.
	State types.OperationState

	// OperationID represents the id of the operation.
	OperationID string

	// Statement represents the statement used for the operation.
	Statement string

	// ResultString is the server-reported result of the operation, in JSON.
	// It is empty if the operation has no result or is still in progress.
	ResultString string

	DelayInfo
}

// String returns a JSON string representation of the SystemStatusResult.
func (r SystemStatusResult) String() string {
	return jsonutil.AsJSON(struct {
		OperationID string
		State       string
	}{r.OperationID, r.State.String()})
}

// validateWaitTimeout checks the timeout and poll interval used for a
// polling wait, defaulting the poll interval when unset.
func validateWaitTimeout(timeout time.Duration, pollInterval *time.Duration) error {
	if *pollInterval == 0 {
		*pollInterval = 500 * time.Millisecond
	}

	if *pollInterval < time.Millisecond {
		return kverr.NewIllegalArgument("pollInterval must be greater than or equal to 1 millisecond, got %v", *pollInterval)
	}

	if timeout < *pollInterval {
		return kverr.NewIllegalArgument("timeout %v must be greater than or equal to pollInterval %v", timeout, *pollInterval)
	}

	return nil
}

// shouldRetryAfter waits for the specified delay, returning an error if the
// context is done before the delay elapses.
func shouldRetryAfter(ctx context.Context, delay time.Duration) error {
	t := time.NewTimer(delay)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
