//
// Copyright (c) 2023, 2025 Keystone Data and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package keystonedb

import (
	"time"

	"github.com/keystonedata/keystone-go-sdk/keystonedb/common"
	"github.com/keystonedata/keystone-go-sdk/keystonedb/internal/proto"
	"github.com/keystonedata/keystone-go-sdk/keystonedb/kverr"
	"github.com/keystonedata/keystone-go-sdk/keystonedb/types"
)

// serializer defines the interface used to serialize requests and
// deserialize results with a specific serial protocol version.
type serializer interface {
	serialize(w proto.Writer, serialVersion int16) error
	deserialize(r proto.Reader, serialVersion int16) (Result, error)
}

// Request is an interface that defines common functions for operation
// requests.
type Request interface {
	serializer

	getTableName() string

	validate() error

	setDefaults(cfg *RequestConfig)

	shouldRetry() bool

	timeout() time.Duration

	doesReads() bool

	doesWrites() bool

	common.InternalRequestDataInt
}

// GetRequest represents a request used to read a single row of data.
//
// It is used as the input of a Client.Get() operation which returns a single
// row based on the specified key.
type GetRequest struct {
	// TableName specifies the name of table from which to get the row.
	// It is required and must be non-empty.
	TableName string

	// Key specifies the primary key used for the get operation.
	// It is required and must be non-nil.
	Key *types.MapValue

	// Timeout specifies the timeout value for the request.
	// It is optional.
	// If set, it must be greater than or equal to 1 millisecond, otherwise
	// the default request timeout configured for the client is used.
	Timeout time.Duration

	// Consistency specifies desired consistency policy for the request.
	// It is optional.
	// If set, it must be either types.Absolute or types.Eventual, otherwise
	// the default consistency configured for the client is used.
	Consistency types.Consistency

	// internal request data, used when rate limiting is enabled.
	common.InternalRequestData
}

func (req *GetRequest) validate() (err error) {
	if err = validateTableName(req.TableName); err != nil {
		return
	}

	if err = validateTimeout(req.Timeout); err != nil {
		return
	}

	if err = validateKey(req.Key); err != nil {
		return
	}

	return validateConsistency(req.Consistency)
}

func (req *GetRequest) setDefaults(cfg *RequestConfig) {
	if req.Timeout == 0 {
		req.Timeout = cfg.DefaultRequestTimeout()
	}

	if req.Consistency == 0 {
		req.Consistency = cfg.DefaultConsistency()
	}
}

func (req *GetRequest) shouldRetry() bool {
	return true
}

func (req *GetRequest) timeout() time.Duration {
	return req.Timeout
}

func (req *GetRequest) getTableName() string {
	return req.TableName
}

func (req *GetRequest) doesReads() bool {
	return true
}

func (req *GetRequest) doesWrites() bool {
	return false
}

// PutRequest represents a request used to put a row into a table.
//
// It is used as the input of a Client.Put() operation which inserts a row
// into a table if it does not exist, or overwrites the existing one if it
// exists, by default. The put behavior can be changed with the PutOption.
type PutRequest struct {
	// TableName specifies the name of table involved in the operation.
	// It is required and must be non-empty.
	TableName string

	// Value specifies the value of the row to put.
	// It is required and must be non-nil.
	Value *types.MapValue

	// PutOption specifies the put option for the operation.
	// It is optional.
	// If set, it must be one of the following values:
	//
	//	types.PutIfAbsent
	//	types.PutIfPresent
	//	types.PutIfVersion
	//
	// If not set, an unconditional put is performed.
	PutOption types.PutOption

	// MatchVersion specifies the version to use for a conditional put
	// operation. The operation is successful only if the version of the
	// existing row matches. This condition exists to allow an application to
	// ensure it is updating a row in an atomic read-modify-write cycle.
	//
	// It is optional, and only used if PutOption is types.PutIfVersion.
	MatchVersion types.Version

	// TTL specifies the time to live (TTL) value, causing the time to live
	// on the row to be set to the specified value on put.
	// It is optional.
	TTL *types.TimeToLive

	// UseTableTTL specifies whether to use the table's default TTL for the
	// row. If true, and there is an existing row, causes the operation to
	// update the time to live (TTL) value of the row based on the table's
	// default TTL if set.
	//
	// If the table has no default TTL this setting has no effect.
	// By default updating an existing row has no effect on its TTL.
	UseTableTTL bool

	// ExactMatch specifies whether the provided value must be an exact match
	// for the table schema. An exact match means that there are no required
	// fields missing and that there are no extra, unknown fields.
	// The default behavior is to not require an exact match.
	ExactMatch bool

	// ReturnRow specifies whether information about the existing row should
	// be returned on failure because of a version mismatch or failure of a
	// types.PutIfAbsent operation.
	ReturnRow bool

	// Timeout specifies the timeout value for the request.
	// It is optional.
	Timeout time.Duration

	// internal request data, used when rate limiting is enabled.
	common.InternalRequestData
}

func (req *PutRequest) validate() (err error) {
	if err = validateTableName(req.TableName); err != nil {
		return
	}

	if err = validateTimeout(req.Timeout); err != nil {
		return
	}

	if req.Value == nil {
		return kverr.NewIllegalArgument("Value must be non-nil")
	}

	switch req.PutOption {
	case 0, types.PutIfAbsent, types.PutIfPresent:
		if req.MatchVersion != nil {
			return kverr.NewIllegalArgument("MatchVersion can only be specified when PutOption is types.PutIfVersion")
		}
	case types.PutIfVersion:
		if req.MatchVersion == nil {
			return kverr.NewIllegalArgument("MatchVersion must be specified when PutOption is types.PutIfVersion")
		}
	default:
		return kverr.NewIllegalArgument("invalid PutOption %v", req.PutOption)
	}

	if req.TTL != nil && req.UseTableTTL {
		return kverr.NewIllegalArgument("TTL and UseTableTTL are mutually exclusive")
	}

	return nil
}

func (req *PutRequest) setDefaults(cfg *RequestConfig) {
	if req.Timeout == 0 {
		req.Timeout = cfg.DefaultRequestTimeout()
	}
}

// shouldRetry reports whether a put operation is safe to re-submit.
// An unconditional put may be applied more than once with the same effect,
// and a conditional put re-checks its condition on the server, so put
// operations are retried.
func (req *PutRequest) shouldRetry() bool {
	return true
}

func (req *PutRequest) timeout() time.Duration {
	return req.Timeout
}

func (req *PutRequest) getTableName() string {
	return req.TableName
}

func (req *PutRequest) doesReads() bool {
	// Conditional puts and puts that ask for the existing row read before
	// they write.
	return req.PutOption != 0 || req.ReturnRow
}

func (req *PutRequest) doesWrites() bool {
	return true
}

// updateTTL reports whether the operation modifies the row's TTL.
func (req *PutRequest) updateTTL() bool {
	return req.UseTableTTL || req.TTL != nil
}

// opCode returns the operation code for the put operation according to the
// specified put option.
func (req *PutRequest) opCode() proto.OpCode {
	switch req.PutOption {
	case types.PutIfAbsent:
		return proto.PutIfAbsent
	case types.PutIfPresent:
		return proto.PutIfPresent
	case types.PutIfVersion:
		return proto.PutIfVersion
	default:
		return proto.Put
	}
}

// DeleteRequest represents a request used to delete a single row of data.
//
// It is used as the input of a Client.Delete() operation which deletes a row
// based on the specified key.
type DeleteRequest struct {
	// TableName specifies the name of table from which to delete the row.
	// It is required and must be non-empty.
	TableName string

	// Key specifies the primary key used for the delete operation.
	// It is required and must be non-nil.
	Key *types.MapValue

	// MatchVersion specifies the version to use for a conditional delete
	// operation. The operation is successful only if the version of the
	// existing row matches.
	// It is optional.
	MatchVersion types.Version

	// ReturnRow specifies whether information about the existing row should
	// be returned on failure because of a version mismatch.
	ReturnRow bool

	// Timeout specifies the timeout value for the request.
	// It is optional.
	Timeout time.Duration

	// internal request data, used when rate limiting is enabled.
	common.InternalRequestData
}

func (req *DeleteRequest) validate() (err error) {
	if err = validateTableName(req.TableName); err != nil {
		return
	}

	if err = validateTimeout(req.Timeout); err != nil {
		return
	}

	return validateKey(req.Key)
}

func (req *DeleteRequest) setDefaults(cfg *RequestConfig) {
	if req.Timeout == 0 {
		req.Timeout = cfg.DefaultRequestTimeout()
	}
}

func (req *DeleteRequest) shouldRetry() bool {
	return true
}

func (req *DeleteRequest) timeout() time.Duration {
	return req.Timeout
}

func (req *DeleteRequest) getTableName() string {
	return req.TableName
}

func (req *DeleteRequest) doesReads() bool {
	return req.MatchVersion != nil || req.ReturnRow
}

func (req *DeleteRequest) doesWrites() bool {
	return true
}

// MultiDeleteRequest represents a request used to delete multiple rows from
// a table in an atomic operation.
//
// It is used as the input of a Client.MultiDelete() operation which deletes
// multiple rows from a table residing on the same shard in an atomic
// operation.
//
// A range of rows is specified using a partial key plus a range. Because the
// operation can exceed the maximum amount of data modified in a single
// operation, a continuation key can be used to continue the operation.
type MultiDeleteRequest struct {
	// TableName specifies the name of table for the operation.
	// It is required and must be non-empty.
	TableName string

	// Key specifies the partial key used for the operation.
	// It is required and must be non-nil.
	Key *types.MapValue

	// ContinuationKey specifies the continuation key to use to continue the
	// operation.
	// It is optional.
	ContinuationKey []byte

	// FieldRange specifies the types.FieldRange to be used for the operation.
	// It is optional, but required to delete a specific range of rows.
	FieldRange *types.FieldRange

	// MaxWriteKB specifies the limit on the total KB write during the
	// operation. It is optional and has no effect if it exceeds the
	// server-imposed limit.
	MaxWriteKB uint

	// Timeout specifies the timeout value for the request.
	// It is optional.
	Timeout time.Duration

	// internal request data, used when rate limiting is enabled.
	common.InternalRequestData
}

func (req *MultiDeleteRequest) validate() (err error) {
	if err = validateTableName(req.TableName); err != nil {
		return
	}

	if err = validateTimeout(req.Timeout); err != nil {
		return
	}

	if err = validateKey(req.Key); err != nil {
		return
	}

	return validateFieldRange(req.FieldRange)
}

func (req *MultiDeleteRequest) setDefaults(cfg *RequestConfig) {
	if req.Timeout == 0 {
		req.Timeout = cfg.DefaultRequestTimeout()
	}
}

// shouldRetry reports whether the operation is safe to re-submit.
// A multi delete makes partial progress that is only recoverable through the
// returned continuation key, so a failed attempt is not retried implicitly.
func (req *MultiDeleteRequest) shouldRetry() bool {
	return false
}

func (req *MultiDeleteRequest) timeout() time.Duration {
	return req.Timeout
}

func (req *MultiDeleteRequest) getTableName() string {
	return req.TableName
}

func (req *MultiDeleteRequest) doesReads() bool {
	return true
}

func (req *MultiDeleteRequest) doesWrites() bool {
	return true
}

// PrepareRequest encapsulates a query prepare call.
//
// Query preparation allows queries to be compiled (prepared) and reused,
// saving time and resources. Use of prepared queries vs direct execution of
// query strings is highly recommended.
type PrepareRequest struct {
	// Statement specifies a query statement.
	// It is required and must be non-empty.
	Statement string

	// Timeout specifies the timeout value for the request.
	// It is optional.
	Timeout time.Duration

	// internal request data, used when rate limiting is enabled.
	common.InternalRequestData
}

func (req *PrepareRequest) validate() (err error) {
	if err = validateTimeout(req.Timeout); err != nil {
		return
	}

	if req.Statement == "" {
		return kverr.NewIllegalArgument("Statement must be non-empty")
	}

	return nil
}

func (req *PrepareRequest) setDefaults(cfg *RequestConfig) {
	if req.Timeout == 0 {
		req.Timeout = cfg.DefaultRequestTimeout()
	}
}

func (req *PrepareRequest) shouldRetry() bool {
	return true
}

func (req *PrepareRequest) timeout() time.Duration {
	return req.Timeout
}

func (req *PrepareRequest) getTableName() string {
	return ""
}

func (req *PrepareRequest) doesReads() bool {
	return true
}

func (req *PrepareRequest) doesWrites() bool {
	return false
}

// QueryRequest encapsulates a query. A query may be either a string query
// statement or a prepared query, which may include bind variables.
//
// For performance reasons prepared queries are preferred for queries that
// may be reused.
//
// A single request execution may return a batch of results and a
// continuation key. The client drives the continuation internally: the
// QueryResult returned by Client.Query() computes its results lazily,
// fetching and merging per-partition batches until it can produce rows in
// the query's order. Call Client.Query() repeatedly until IsDone() reports
// the query is complete:
//
//	for {
//	    res, err := client.Query(queryReq)
//	    if err != nil {
//	        return err
//	    }
//	    rows, err := res.GetResults()
//	    if err != nil {
//	        return err
//	    }
//	    ... process rows ...
//	    if queryReq.IsDone() {
//	        break
//	    }
//	}
type QueryRequest struct {
	// Statement specifies a query statement.
	Statement string

	// PreparedStatement specifies the prepared query statement.
	// Either Statement or PreparedStatement must be specified.
	PreparedStatement *PreparedStatement

	// Limit specifies the limit on number of rows returned by the operation.
	// It is optional.
	// This allows an operation to return less than the default amount of data.
	Limit uint

	// MaxReadKB specifies the limit on the total data read during a single
	// batch of the operation, measured in KB.
	// It is optional and has no effect if it exceeds the server-imposed limit.
	MaxReadKB uint

	// Consistency specifies desired consistency policy for the request.
	// It is optional.
	Consistency types.Consistency

	// Timeout specifies the timeout value for the request.
	// It is optional.
	Timeout time.Duration

	// TableName is set internally from the prepared statement and used for
	// rate limiter lookup.
	TableName string

	// continuationKey is the key used to continue the query on the server.
	continuationKey []byte

	// driver computes query results across batches and partitions.
	// It is created on the first execution of a non-simple query.
	driver *queryDriver

	// isInternal marks requests created by the query driver to fetch a
	// batch for one partition. Internal requests bypass the driver.
	isInternal bool

	// partitionID directs an internal request at a single partition.
	// nil means the request is not bound to a partition.
	partitionID *int

	// internal request data, used when rate limiting is enabled.
	common.InternalRequestData
}

func (req *QueryRequest) validate() (err error) {
	if err = validateTimeout(req.Timeout); err != nil {
		return
	}

	if err = validateConsistency(req.Consistency); err != nil {
		return
	}

	if req.Statement == "" && !req.isPrepared() {
		return kverr.NewIllegalArgument("either Statement or PreparedStatement must be specified")
	}

	return nil
}

func (req *QueryRequest) setDefaults(cfg *RequestConfig) {
	if req.Timeout == 0 {
		req.Timeout = cfg.DefaultRequestTimeout()
	}

	if req.Consistency == 0 {
		req.Consistency = cfg.DefaultConsistency()
	}
}

func (req *QueryRequest) shouldRetry() bool {
	return true
}

func (req *QueryRequest) timeout() time.Duration {
	return req.Timeout
}

func (req *QueryRequest) getTableName() string {
	if req.TableName != "" {
		return req.TableName
	}
	if req.isPrepared() {
		return req.PreparedStatement.tableName
	}
	return ""
}

func (req *QueryRequest) doesReads() bool {
	return true
}

// doesWrites reports whether the query writes.
// Data modifying statements must be prepared, and the server marks them in
// the prepared statement payload.
func (req *QueryRequest) doesWrites() bool {
	return req.isPrepared() && req.PreparedStatement.operatesOnData
}

func (req *QueryRequest) isPrepared() bool {
	return req.PreparedStatement != nil && len(req.PreparedStatement.statement) > 0
}

// isSimpleQuery reports whether the query can be satisfied by forwarding
// batches from the server as is, with no client-side sorting, grouping or
// duplicate elimination.
func (req *QueryRequest) isSimpleQuery() bool {
	return !req.isPrepared() || req.PreparedStatement.isSimpleQuery()
}

func (req *QueryRequest) hasDriver() bool {
	return req.driver != nil
}

func (req *QueryRequest) setContKey(key []byte) {
	req.continuationKey = key
}

// IsDone reports whether the query execution is complete, that is there are
// no more results to be returned by further Client.Query() calls with this
// request.
func (req *QueryRequest) IsDone() bool {
	if req.driver != nil {
		return req.driver.isDone()
	}
	return req.continuationKey == nil
}

// Close terminates the query execution and releases any memory consumed by
// the query driver. It is not an error to close a completed query.
func (req *QueryRequest) Close() {
	if req.driver != nil {
		req.driver.close()
	}
	req.continuationKey = nil
}

// copyInternal creates an internal copy of this request bound to the
// specified partition, used by the query driver to fetch one batch for that
// partition.
func (req *QueryRequest) copyInternal(partitionID int) *QueryRequest {
	pid := partitionID
	return &QueryRequest{
		PreparedStatement: req.PreparedStatement,
		Limit:             req.Limit,
		MaxReadKB:         req.MaxReadKB,
		Consistency:       req.Consistency,
		Timeout:           req.Timeout,
		TableName:         req.getTableName(),
		isInternal:        true,
		partitionID:       &pid,
	}
}

// PreparedStatement encapsulates a prepared query statement. It includes
// state that can be sent to a server and executed without re-parsing the
// query.
//
// The prepared statement also carries the driver-side query plan: when the
// query sorts, groups or aggregates across partitions, the client completes
// the work the server cannot do on a single partition.
//
// A single instance of PreparedStatement is thread-safe, except for the bind
// variables which must not be modified concurrently with query execution.
type PreparedStatement struct {
	// sqlText is the original query statement.
	sqlText string

	// tableName is the target table of the query.
	tableName string

	// statement is the opaque server-side representation of the query.
	statement []byte

	// operatesOnData marks statements that modify data.
	operatesOnData bool

	// simple marks queries the server can satisfy without driver-side work.
	simple bool

	// numPartitions is the number of partitions the table is spread over.
	// Non-simple queries fetch one result stream per partition.
	numPartitions int

	// sortFields and sortSpecs describe the query's ORDER BY.
	sortFields []string
	sortSpecs  []sortSpec

	// groupFields names the GROUP BY columns, in sort order.
	groupFields []string

	// aggregates describes the aggregate functions computed per group.
	aggregates []aggregateSpec

	// eliminateDuplicates is set for queries whose index-based execution may
	// surface the same row from multiple streams.
	eliminateDuplicates bool

	// keyFields names the primary key columns used for duplicate
	// elimination.
	keyFields []string

	// bindVariables are the values bound to the statement's external
	// variables.
	bindVariables map[string]interface{}
}

// SQLText returns the query statement used to build the prepared statement.
func (p *PreparedStatement) SQLText() string {
	return p.sqlText
}

// SetVariable binds a value to the named variable for use in query
// execution.
//
// Existing variables with the same name are silently overwritten. The names
// and types are validated when the query is executed.
func (p *PreparedStatement) SetVariable(name string, value interface{}) error {
	if name == "" {
		return kverr.NewIllegalArgument("variable name must be non-empty")
	}

	if p.bindVariables == nil {
		p.bindVariables = make(map[string]interface{}, 4)
	}
	p.bindVariables[name] = value
	return nil
}

// ClearVariables removes all bind variables from the statement.
func (p *PreparedStatement) ClearVariables() {
	p.bindVariables = nil
}

// isSimpleQuery reports whether the query requires no driver-side
// computation.
func (p *PreparedStatement) isSimpleQuery() bool {
	return p.simple
}

// TableRequest is used to create, modify and drop tables.
//
// The operations allowed using this request are those supported by the table
// data definition (DDL) statement.
//
// Execution of operations specified by this request is implicitly
// asynchronous. These are potentially long-running operations, and this
// request sends the operation to the server. The returned TableResult
// instance can be used to poll until the table reaches the desired state,
// see TableResult.WaitForCompletion().
type TableRequest struct {
	// Statement specifies the table DDL statement, such as CREATE TABLE,
	// DROP TABLE or ALTER TABLE.
	// It must be non-empty unless TableLimits is specified for an existing
	// table.
	Statement string

	// TableLimits specifies read/write throughput and storage limits for
	// the table.
	//
	// It is required for table creation, and may be used alone, without a
	// Statement, to modify the limits of an existing table. In that case
	// TableName must be specified.
	TableLimits *TableLimits

	// TableName specifies the name of the table for a limits-only request.
	// It must not be set together with a Statement, which names the table
	// itself.
	TableName string

	// Timeout specifies the timeout value for the request.
	// It is optional.
	// If not set, the default table request timeout configured for the
	// client is used.
	Timeout time.Duration

	// internal request data.
	common.InternalRequestData
}

func (req *TableRequest) validate() (err error) {
	if err = validateTimeout(req.Timeout); err != nil {
		return
	}

	if req.Statement == "" && req.TableLimits == nil {
		return kverr.NewIllegalArgument("either Statement or TableLimits must be specified")
	}

	if req.Statement != "" && req.TableName != "" {
		return kverr.NewIllegalArgument("Statement and TableName are mutually exclusive")
	}

	if req.Statement == "" {
		if err = validateTableName(req.TableName); err != nil {
			return
		}
		return req.TableLimits.validate()
	}

	if req.TableLimits != nil {
		return req.TableLimits.validate()
	}

	return nil
}

func (req *TableRequest) setDefaults(cfg *RequestConfig) {
	if req.Timeout == 0 {
		req.Timeout = cfg.DefaultTableRequestTimeout()
	}
}

// shouldRetry reports whether the operation is safe to re-submit.
// DDL operations are not idempotent and are not retried implicitly.
func (req *TableRequest) shouldRetry() bool {
	return false
}

func (req *TableRequest) timeout() time.Duration {
	return req.Timeout
}

func (req *TableRequest) getTableName() string {
	return req.TableName
}

func (req *TableRequest) doesReads() bool {
	return false
}

func (req *TableRequest) doesWrites() bool {
	return false
}

// TableLimits is used during table creation to specify the throughput and
// capacity to be consumed by the table. It is also used in an operation to
// change the limits of an existing table.
//
// These limits are enforced in the rest of the system and also used for
// client-side rate limiting when enabled on the client.
type TableLimits struct {
	// ReadUnits specifies the number of read units the table supports.
	//
	// A read unit represents 1 eventually consistent read per second for
	// data up to 1 KB in size. A read that is absolutely consistent is twice
	// as expensive as an eventually consistent read.
	ReadUnits uint

	// WriteUnits specifies the number of write units the table supports.
	//
	// A write unit represents 1 write per second of data up to 1 KB in size.
	WriteUnits uint

	// StorageGB specifies the maximum amount of storage, in gigabytes,
	// allowed for the table.
	StorageGB uint
}

func (limits *TableLimits) validate() error {
	if limits == nil {
		return kverr.NewIllegalArgument("TableLimits must be non-nil")
	}

	if limits.ReadUnits == 0 || limits.WriteUnits == 0 || limits.StorageGB == 0 {
		return kverr.NewIllegalArgument("TableLimits values must be positive, got %#v", *limits)
	}

	return nil
}

// GetTableRequest represents a request used to retrieve information of a
// table, including its state, provisioned throughput, capacity and schema.
type GetTableRequest struct {
	// TableName specifies the name of the table.
	// It is required and must be non-empty.
	TableName string

	// OperationID specifies the operation id to use for the request.
	//
	// The operation id can be obtained via TableResult.OperationID, it
	// represents an asynchronous operation that may be in progress. It is
	// used to examine the result of the operation and if the operation has
	// failed an error will be returned in response to a Client.GetTable()
	// operation. If the operation is in progress or has completed
	// successfully, the state of the table is returned.
	OperationID string

	// Timeout specifies the timeout value for the request.
	// It is optional.
	Timeout time.Duration

	// internal request data.
	common.InternalRequestData
}

func (req *GetTableRequest) validate() (err error) {
	if err = validateTableName(req.TableName); err != nil {
		return
	}

	return validateTimeout(req.Timeout)
}

func (req *GetTableRequest) setDefaults(cfg *RequestConfig) {
	if req.Timeout == 0 {
		req.Timeout = cfg.DefaultRequestTimeout()
	}
}

func (req *GetTableRequest) shouldRetry() bool {
	return true
}

func (req *GetTableRequest) timeout() time.Duration {
	return req.Timeout
}

func (req *GetTableRequest) getTableName() string {
	return req.TableName
}

func (req *GetTableRequest) doesReads() bool {
	return false
}

func (req *GetTableRequest) doesWrites() bool {
	return false
}

// ListTablesRequest represents the argument of a Client.ListTables()
// operation which lists all available table names.
//
// If further information about a specific table is desired, the
// Client.GetTable() operation may be used.
type ListTablesRequest struct {
	// StartIndex specifies the index to use to start returning table names.
	// This is related to the ListTablesResult.LastIndexReturned from a
	// previous request and can be used to page table names.
	// It is optional.
	// If not set, the list starts at index 0.
	StartIndex uint

	// Limit specifies the maximum number of table names to return in the
	// operation.
	// It is optional.
	// If not set or set to 0, there is no limit.
	Limit uint

	// Timeout specifies the timeout value for the request.
	// It is optional.
	Timeout time.Duration

	// internal request data.
	common.InternalRequestData
}

func (req *ListTablesRequest) validate() error {
	return validateTimeout(req.Timeout)
}

func (req *ListTablesRequest) setDefaults(cfg *RequestConfig) {
	if req.Timeout == 0 {
		req.Timeout = cfg.DefaultRequestTimeout()
	}
}

func (req *ListTablesRequest) shouldRetry() bool {
	return true
}

func (req *ListTablesRequest) timeout() time.Duration {
	return req.Timeout
}

func (req *ListTablesRequest) getTableName() string {
	return ""
}

func (req *ListTablesRequest) doesReads() bool {
	return false
}

func (req *ListTablesRequest) doesWrites() bool {
	return false
}

// SystemStatusRequest represents a request used to check the status of an
// administrative operation performed by the server.
type SystemStatusRequest struct {
	// OperationID specifies the operation id returned from the server for
	// the operation whose status is being checked.
	// It is required and must be non-empty.
	OperationID string

	// Statement specifies the statement for the operation.
	// It is optional and used in logging and tracing only.
	Statement string

	// Timeout specifies the timeout value for the request.
	// It is optional.
	Timeout time.Duration

	// internal request data.
	common.InternalRequestData
}

func (req *SystemStatusRequest) validate() error {
	if req.OperationID == "" {
		return kverr.NewIllegalArgument("OperationID must be non-empty")
	}

	return validateTimeout(req.Timeout)
}

func (req *SystemStatusRequest) setDefaults(cfg *RequestConfig) {
	if req.Timeout == 0 {
		req.Timeout = cfg.DefaultRequestTimeout()
	}
}

func (req *SystemStatusRequest) shouldRetry() bool {
	return true
}

func (req *SystemStatusRequest) timeout() time.Duration {
	return req.Timeout
}

func (req *SystemStatusRequest) getTableName() string {
	return ""
}

func (req *SystemStatusRequest) doesReads() bool {
	return false
}

func (req *SystemStatusRequest) doesWrites() bool {
	return false
}

// validateTimeout checks a request timeout is either unset or at least one
// millisecond.
func validateTimeout(timeout time.Duration) error {
	if timeout != 0 && timeout < time.Millisecond {
		return kverr.NewIllegalArgument("Timeout must be greater than or equal to 1 millisecond, got %v", timeout)
	}
	return nil
}

func validateConsistency(c types.Consistency) error {
	if c != 0 && c != types.Absolute && c != types.Eventual {
		return kverr.NewIllegalArgument("Consistency must be either types.Absolute or types.Eventual, got %v", c)
	}
	return nil
}

func validateTableName(tableName string) error {
	if tableName == "" {
		return kverr.NewIllegalArgument("TableName must be non-empty")
	}
	return nil
}

func validateKey(key *types.MapValue) error {
	if key == nil {
		return kverr.NewIllegalArgument("Key must be non-nil")
	}
	if key.Len() == 0 {
		return kverr.NewIllegalArgument("Key must be non-empty")
	}
	return nil
}

func validateFieldRange(fr *types.FieldRange) error {
	if fr == nil {
		return nil
	}

	if fr.FieldPath == "" {
		return kverr.NewIllegalArgument("FieldRange.FieldPath must be non-empty")
	}

	if fr.Start == nil && fr.End == nil {
		return kverr.NewIllegalArgument("FieldRange must specify a Start or End value")
	}

	return nil
}
