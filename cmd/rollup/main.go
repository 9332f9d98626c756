package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/holiman/uint256"
	"github.com/spf13/cobra"

	"github.com/availproject/sovereign-sdk/blobstorage"
	"github.com/availproject/sovereign-sdk/codec"
	"github.com/availproject/sovereign-sdk/da"
	"github.com/availproject/sovereign-sdk/log"
	"github.com/availproject/sovereign-sdk/sequencer"
	"github.com/availproject/sovereign-sdk/state"
	"github.com/availproject/sovereign-sdk/stf"
)

var (
	dbPath       string
	logLevel     string
	slots        int
	numSequencer int
	preferredSeq int
)

// kvHandler interprets a blob payload as a sequence of key-value writes
// into a demo namespace. It is enough to exercise the full pipeline end to
// end: state reads and writes, witnesses, and commitment.
type kvHandler struct {
	kv state.StateMap[string, []byte]
}

func newKvHandler() *kvHandler {
	return &kvHandler{
		kv: state.NewStateMap[string, []byte](
			state.NewPrefix("demo/kv"),
			codec.StringCodec{},
			codec.BytesCodec{},
		),
	}
}

func (h *kvHandler) ApplyBatch(ws *state.WorkingSet, blob da.BlobReader) error {
	payload := make([]byte, blob.Data().TotalLen())
	if _, err := blob.Data().Read(payload); err != nil {
		return err
	}
	dec := codec.NewDecoder(bytes.NewReader(payload))
	n, err := dec.DecodeCompact()
	if err != nil {
		return err
	}
	for i := uint64(0); i < n; i++ {
		key, err := dec.DecodeString()
		if err != nil {
			return err
		}
		value, err := dec.DecodeBytes()
		if err != nil {
			return err
		}
		if err := h.kv.Set(ws, key, value); err != nil {
			return err
		}
	}
	return nil
}

func encodeKvPayload(pairs map[string][]byte, order []string) []byte {
	enc, buf := codec.NewEncoderBuffer()
	enc.EncodeCompact(uint64(len(order)))
	for _, key := range order {
		enc.EncodeString(key)
		enc.EncodeBytes(pairs[key])
	}
	return buf.Bytes()
}

func runDemo(cmd *cobra.Command, args []string) error {
	log.InitLogger(logLevel)

	storage, err := state.NewProverStorage(state.Config{Path: dbPath})
	if err != nil {
		return err
	}
	defer storage.Close()

	registry := sequencer.NewRegistry()
	blobStore := blobstorage.NewBlobStorage()
	handler := newKvHandler()
	verifier := da.MockDaVerifier{}
	runner := stf.NewRunner(storage, registry, blobStore, verifier, handler)

	addrs := make([]da.MockAddress, numSequencer)
	cfg := sequencer.GenesisConfig{}
	for i := range addrs {
		addrs[i] = da.NewMockAddress(byte(i + 1))
		cfg.Sequencers = append(cfg.Sequencers, sequencer.GenesisSequencer{
			Address: addrs[i].Bytes(),
			Bond:    uint256.NewInt(1000),
		})
	}
	if preferredSeq >= 0 && preferredSeq < len(addrs) {
		cfg.Preferred = addrs[preferredSeq].Bytes()
	}

	if storage.IsEmpty() {
		root, err := runner.InitChain(cfg, state.NewArrayWitness())
		if err != nil {
			return err
		}
		log.Info(log.NodeModule, "genesis committed", "root", root)
	}

	slotVerifier := stf.NewSlotVerifier(registry, blobStore, verifier, handler)

	prevHash := storage.GetStateRoot()
	for slot := 0; slot < slots; slot++ {
		header := da.NewMockBlockHeader(prevHash, uint64(slot))
		prevHash = header.Hash()

		var blobs []da.BlobReader
		for i, addr := range addrs {
			key := fmt.Sprintf("slot-%d/seq-%d", slot, i)
			payload := encodeKvPayload(map[string][]byte{key: []byte("ok")}, []string{key})
			blobs = append(blobs, da.NewMockBlob(addr, payload))
		}

		prevRoot := storage.GetStateRoot()
		witness := state.NewArrayWitness()
		result, err := runner.ApplySlot(header, blobs, stf.SlotProofs{}, witness)
		if err != nil {
			return err
		}
		for _, receipt := range result.Receipts {
			log.Debug(log.NodeModule, "receipt",
				"blob", receipt.BlobHash, "status", receipt.Status.String())
		}

		replayBlobs := make([]da.BlobReader, 0, len(blobs))
		for i, addr := range addrs {
			key := fmt.Sprintf("slot-%d/seq-%d", slot, i)
			payload := encodeKvPayload(map[string][]byte{key: []byte("ok")}, []string{key})
			replayBlobs = append(replayBlobs, da.NewMockBlob(addr, payload))
		}
		transition, err := slotVerifier.VerifySlot(prevRoot, header, replayBlobs, stf.SlotProofs{}, witness)
		if err != nil {
			return fmt.Errorf("slot %d replay failed: %w", slot, err)
		}
		if transition.FinalRoot != result.FinalRoot {
			return fmt.Errorf("slot %d root mismatch: native %s, replay %s",
				slot, result.FinalRoot, transition.FinalRoot)
		}
		log.Info(log.NodeModule, "slot verified",
			"slot", slot, "root", transition.FinalRoot)
	}
	return nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "rollup",
		Short: "Run a demo rollup over a mock data availability layer",
		RunE:  runDemo,
	}
	rootCmd.Flags().StringVar(&dbPath, "db", "", "database path (empty for in-memory)")
	rootCmd.Flags().StringVar(&logLevel, "log.level", "info", "log level (trace|debug|info|warn|error)")
	rootCmd.Flags().IntVar(&slots, "slots", 3, "number of slots to run")
	rootCmd.Flags().IntVar(&numSequencer, "sequencers", 2, "number of genesis sequencers")
	rootCmd.Flags().IntVar(&preferredSeq, "preferred", 0, "index of the preferred sequencer (-1 for none)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
