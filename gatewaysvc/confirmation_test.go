package gatewaysvc

import (
	"errors"
	"testing"

	"github.com/golang/mock/gomock"

	"github.com/aurex-chain/aurex/gatewaysvc/mocks"
)

func TestHandleBlockConfirmationRecordsAgainstLedger(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledger := mocks.NewMockConfirmationLedger(ctrl)
	ledger.EXPECT().RecordConfirmation("hash-1").Return(true, nil)

	gw := New(Config{AppServerHost: "127.0.0.1", AppServerPort: freePort(t)}, ledger)
	gw.handleBlockConfirmation(nodeConfirmation{BlockHash: "hash-1"})
}

func TestHandleBlockConfirmationToleratesLedgerError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledger := mocks.NewMockConfirmationLedger(ctrl)
	ledger.EXPECT().RecordConfirmation("hash-2").Return(false, errors.New("boom"))

	gw := New(Config{AppServerHost: "127.0.0.1", AppServerPort: freePort(t)}, ledger)
	gw.handleBlockConfirmation(nodeConfirmation{BlockHash: "hash-2"})
}
