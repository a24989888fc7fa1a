package collector

import (
	"context"
	"net/http"
	"testing"

	"github.com/coinfrs/recon/internal/models"
	"github.com/coinfrs/recon/internal/storage"
)

// transferExchange serves the universal-transfer and sub-account endpoints
// with one confirmed movement each way plus sub-account traffic.
func transferExchange() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/sapi/v1/asset/transfer", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("type") {
		case "MAIN_MARGIN":
			w.Write([]byte(`{"total":1,"rows":[{"asset":"USDT","amount":"50","type":"MAIN_MARGIN","status":"CONFIRMED","tranId":7,"timestamp":1714550400000}]}`))
		case "MARGIN_MAIN":
			w.Write([]byte(`{"total":1,"rows":[{"asset":"BTC","amount":"0.2","type":"MARGIN_MAIN","status":"CONFIRMED","tranId":8,"timestamp":1714554000000}]}`))
		case "FUNDING_MARGIN":
			w.Write([]byte(`{"total":1,"rows":[{"asset":"BNB","amount":"3","type":"FUNDING_MARGIN","status":"CONFIRMED","tranId":9,"timestamp":1714557600000}]}`))
		default:
			w.Write([]byte(`{"total":0,"rows":[]}`))
		}
	})
	mux.HandleFunc("/sapi/v1/sub-account/transfer/subUserHistory", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"tranId":21,"fromEmail":"sub1@example.com","toEmail":"ops@example.com","asset":"USDT","qty":"500","status":"SUCCESS","time":1714561200000},
			{"tranId":22,"fromEmail":"ops@example.com","toEmail":"sub2@example.com","asset":"USDT","qty":"200","status":"SUCCESS","time":1714564800000}
		]`))
	})
	return mux
}

func TestTransferCollectorDirections(t *testing.T) {
	store := storage.NewMemoryStore()
	c := NewTransferCollector(testDeps(t, store, transferExchange()))
	start, end := dayWindow()

	result, err := c.Collect(context.Background(), start, end)
	if err != nil {
		t.Fatal(err)
	}
	if result.Subflows["main"] != 4 {
		t.Errorf("main subflow = %d, want 4 (two legs per transfer)", result.Subflows["main"])
	}
	if result.Subflows["wallet"] != 2 {
		t.Errorf("wallet subflow = %d, want 2", result.Subflows["wallet"])
	}
	if result.Subflows["sub"] != 2 {
		t.Errorf("sub subflow = %d, want 2", result.Subflows["sub"])
	}

	rows := make(map[string]models.Transfer)
	for _, tr := range store.Transfers() {
		rows[tr.ExternalID] = tr
	}

	// Spot to margin books a leg on each wallet.
	out := rows["main_transfer_7_out"]
	if out.TxnType != models.TxnTransferOut || out.Wallet != models.WalletSpot {
		t.Errorf("MAIN_MARGIN out leg booked as %s on %s", out.TxnType, out.Wallet)
	}
	if !out.Amount.Equal(mustDecimal(t, "-50")) {
		t.Errorf("MAIN_MARGIN out amount = %s, want -50", out.Amount)
	}
	if out.CounterParty != "MARGIN" {
		t.Errorf("counterparty = %s, want MARGIN", out.CounterParty)
	}
	in := rows["main_transfer_7_in"]
	if in.TxnType != models.TxnTransferIn || in.Wallet != models.WalletMargin {
		t.Errorf("MAIN_MARGIN in leg booked as %s on %s", in.TxnType, in.Wallet)
	}
	if !in.Amount.Equal(mustDecimal(t, "50")) {
		t.Errorf("MAIN_MARGIN in amount = %s, want 50", in.Amount)
	}

	// Margin to spot arrives at the spot wallet.
	back := rows["main_transfer_8_in"]
	if back.TxnType != models.TxnTransferIn || back.Wallet != models.WalletSpot {
		t.Errorf("MARGIN_MAIN in leg booked as %s on %s", back.TxnType, back.Wallet)
	}
	if !back.Amount.Equal(mustDecimal(t, "0.2")) {
		t.Errorf("MARGIN_MAIN in amount = %s, want 0.2", back.Amount)
	}

	// Funding to margin never touches spot.
	wallet := rows["wallet_transfer_9_out"]
	if wallet.Wallet != models.WalletFunding || wallet.TxnType != models.TxnTransferOut {
		t.Errorf("FUNDING_MARGIN out leg booked as %s on %s", wallet.TxnType, wallet.Wallet)
	}
	if wallet.TxnSubtype != models.SubWalletTransfer {
		t.Errorf("subtype = %s, want %s", wallet.TxnSubtype, models.SubWalletTransfer)
	}
	if got := rows["wallet_transfer_9_in"]; got.Wallet != models.WalletMargin || !got.Amount.Equal(mustDecimal(t, "3")) {
		t.Errorf("FUNDING_MARGIN in leg = %s on %s, want 3 on MARGIN", got.Amount, got.Wallet)
	}

	// Sub transfers take their direction from which side we are.
	inbound := rows["sub_transfer_21"]
	if inbound.TxnType != models.TxnTransferIn || !inbound.Amount.Equal(mustDecimal(t, "500")) {
		t.Errorf("inbound sub transfer = %s %s", inbound.TxnType, inbound.Amount)
	}
	if inbound.CounterParty != "sub1@example.com" {
		t.Errorf("inbound counterparty = %s", inbound.CounterParty)
	}
	outbound := rows["sub_transfer_22"]
	if outbound.TxnType != models.TxnTransferOut || !outbound.Amount.Equal(mustDecimal(t, "-200")) {
		t.Errorf("outbound sub transfer = %s %s", outbound.TxnType, outbound.Amount)
	}
}

func TestTransferCollectorSubFlowPermissionDenied(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/sapi/v1/asset/transfer", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("type") == "MAIN_MARGIN" {
			w.Write([]byte(`{"total":1,"rows":[{"asset":"USDT","amount":"50","type":"MAIN_MARGIN","status":"CONFIRMED","tranId":7,"timestamp":1714550400000}]}`))
			return
		}
		w.Write([]byte(`{"total":0,"rows":[]}`))
	})
	mux.HandleFunc("/sapi/v1/sub-account/transfer/subUserHistory", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"code":-2015,"msg":"Invalid API-key, IP, or permissions for action."}`))
	})

	store := storage.NewMemoryStore()
	c := NewTransferCollector(testDeps(t, store, mux))
	start, end := dayWindow()

	// A main-labelled key without sub-account permission keeps the run
	// alive: the other flows already succeeded with the same key.
	result, err := c.Collect(context.Background(), start, end)
	if err != nil {
		t.Fatal(err)
	}
	if result.Subflows["main"] != 2 {
		t.Errorf("main subflow = %d, want 2", result.Subflows["main"])
	}
	if result.Subflows["sub"] != 0 {
		t.Errorf("sub subflow = %d, want 0", result.Subflows["sub"])
	}
	if len(result.Errors) == 0 {
		t.Error("expected a logged permission error for the sub flow")
	}
}

func TestTransferCollectorSkipsSubFlowForSubAccounts(t *testing.T) {
	store := storage.NewMemoryStore()
	deps := testDeps(t, store, transferExchange())
	deps.AccountType = AccountSub
	c := NewTransferCollector(deps)
	start, end := dayWindow()

	result, err := c.Collect(context.Background(), start, end)
	if err != nil {
		t.Fatal(err)
	}
	if result.Subflows["sub"] != 0 {
		t.Errorf("sub accounts must not fetch sub-account history, got %d", result.Subflows["sub"])
	}
}
