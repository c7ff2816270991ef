// Package mockkv provides hand-written gomock doubles for the kv
// package's Database and Transaction interfaces (SPEC_FULL.md §1: "for
// hand-written mock doubles of the kv interfaces, generated-style,
// written by hand since we do not run mockgen"). Shaped the way
// mockgen itself would emit them, so callers use the familiar
// EXPECT().Method(...).Return(...) recorder style.
package mockkv

import (
	"context"
	"reflect"

	"go.uber.org/mock/gomock"

	"github.com/recordgraph/rg/kv"
)

// MockTransaction is a mock of the kv.Transaction interface.
type MockTransaction struct {
	ctrl     *gomock.Controller
	recorder *MockTransactionMockRecorder
}

// MockTransactionMockRecorder is the recorder for MockTransaction.
type MockTransactionMockRecorder struct {
	mock *MockTransaction
}

// NewMockTransaction creates a new mock instance.
func NewMockTransaction(ctrl *gomock.Controller) *MockTransaction {
	m := &MockTransaction{ctrl: ctrl}
	m.recorder = &MockTransactionMockRecorder{m}
	return m
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockTransaction) EXPECT() *MockTransactionMockRecorder { return m.recorder }

func (m *MockTransaction) GetValue(ctx context.Context, key []byte) ([]byte, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetValue", ctx, key)
	v, _ := ret[0].([]byte)
	err, _ := ret[1].(error)
	return v, err
}

func (mr *MockTransactionMockRecorder) GetValue(ctx, key any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetValue", reflect.TypeOf((*MockTransaction)(nil).GetValue), ctx, key)
}

func (m *MockTransaction) SetValue(key, value []byte) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "SetValue", key, value)
	err, _ := ret[0].(error)
	return err
}

func (mr *MockTransactionMockRecorder) SetValue(key, value any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "SetValue", reflect.TypeOf((*MockTransaction)(nil).SetValue), key, value)
}

func (m *MockTransaction) Clear(key []byte) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Clear", key)
	err, _ := ret[0].(error)
	return err
}

func (mr *MockTransactionMockRecorder) Clear(key any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Clear", reflect.TypeOf((*MockTransaction)(nil).Clear), key)
}

func (m *MockTransaction) ClearRange(begin, end []byte) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ClearRange", begin, end)
	err, _ := ret[0].(error)
	return err
}

func (mr *MockTransactionMockRecorder) ClearRange(begin, end any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ClearRange", reflect.TypeOf((*MockTransaction)(nil).ClearRange), begin, end)
}

func (m *MockTransaction) GetRange(ctx context.Context, begin, end []byte, mode kv.StreamingMode, yield func(kv.KeyValue) (bool, error)) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetRange", ctx, begin, end, mode, yield)
	err, _ := ret[0].(error)
	return err
}

func (mr *MockTransactionMockRecorder) GetRange(ctx, begin, end, mode, yield any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetRange", reflect.TypeOf((*MockTransaction)(nil).GetRange), ctx, begin, end, mode, yield)
}

func (m *MockTransaction) SetReadVersion(version uint64) {
	m.ctrl.T.Helper()
	m.ctrl.Call(m, "SetReadVersion", version)
}

func (mr *MockTransactionMockRecorder) SetReadVersion(version any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "SetReadVersion", reflect.TypeOf((*MockTransaction)(nil).SetReadVersion), version)
}

func (m *MockTransaction) GetCommittedVersion() (uint64, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetCommittedVersion")
	v, _ := ret[0].(uint64)
	err, _ := ret[1].(error)
	return v, err
}

func (mr *MockTransactionMockRecorder) GetCommittedVersion() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetCommittedVersion", reflect.TypeOf((*MockTransaction)(nil).GetCommittedVersion))
}

func (m *MockTransaction) GetApproximateSize() (int64, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetApproximateSize")
	v, _ := ret[0].(int64)
	err, _ := ret[1].(error)
	return v, err
}

func (mr *MockTransactionMockRecorder) GetApproximateSize() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetApproximateSize", reflect.TypeOf((*MockTransaction)(nil).GetApproximateSize))
}

func (m *MockTransaction) Commit(ctx context.Context) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Commit", ctx)
	err, _ := ret[0].(error)
	return err
}

func (mr *MockTransactionMockRecorder) Commit(ctx any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Commit", reflect.TypeOf((*MockTransaction)(nil).Commit), ctx)
}

func (m *MockTransaction) Cancel() {
	m.ctrl.T.Helper()
	m.ctrl.Call(m, "Cancel")
}

func (mr *MockTransactionMockRecorder) Cancel() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Cancel", reflect.TypeOf((*MockTransaction)(nil).Cancel))
}

func (m *MockTransaction) Watch(ctx context.Context, key []byte) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Watch", ctx, key)
	err, _ := ret[0].(error)
	return err
}

func (mr *MockTransactionMockRecorder) Watch(ctx, key any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Watch", reflect.TypeOf((*MockTransaction)(nil).Watch), ctx, key)
}

// MockDatabase is a mock of the kv.Database interface.
type MockDatabase struct {
	ctrl     *gomock.Controller
	recorder *MockDatabaseMockRecorder
}

// MockDatabaseMockRecorder is the recorder for MockDatabase.
type MockDatabaseMockRecorder struct {
	mock *MockDatabase
}

// NewMockDatabase creates a new mock instance.
func NewMockDatabase(ctrl *gomock.Controller) *MockDatabase {
	m := &MockDatabase{ctrl: ctrl}
	m.recorder = &MockDatabaseMockRecorder{m}
	return m
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockDatabase) EXPECT() *MockDatabaseMockRecorder { return m.recorder }

func (m *MockDatabase) CreateTransaction(ctx context.Context) (kv.Transaction, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "CreateTransaction", ctx)
	txn, _ := ret[0].(kv.Transaction)
	err, _ := ret[1].(error)
	return txn, err
}

func (mr *MockDatabaseMockRecorder) CreateTransaction(ctx any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "CreateTransaction", reflect.TypeOf((*MockDatabase)(nil).CreateTransaction), ctx)
}

func (m *MockDatabase) EstimatedSize(ctx context.Context, begin, end []byte) (int64, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "EstimatedSize", ctx, begin, end)
	v, _ := ret[0].(int64)
	err, _ := ret[1].(error)
	return v, err
}

func (mr *MockDatabaseMockRecorder) EstimatedSize(ctx, begin, end any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "EstimatedSize", reflect.TypeOf((*MockDatabase)(nil).EstimatedSize), ctx, begin, end)
}
