package api

import (
	dpl "github.com/mynextid/sod-zk/circuits/der-pubkey-lookup"
	cma "github.com/mynextid/sod-zk/circuits/mrz-age"
	seh "github.com/mynextid/sod-zk/circuits/sod-embedded-hash"
	sse "github.com/mynextid/sod-zk/circuits/sod-signature-es256"
)

// DG1 of a TD3 passport is 61 5B 5F1F 58 followed by the 88 character MRZ.
const (
	BYTE_SIZE_RSA2048      = 256
	BYTE_SIZE_TBS          = 512 * 3
	BYTE_SIZE_ECONTENT     = 1024
	BYTE_SIZE_SIGNED_ATTRS = 256
	BYTE_SIZE_DG1_TD3      = 93
)

var CircuitList = map[string]CircuitInfo{
	dpl.Name: {
		Circuit:     dpl.NewCircuit(BYTE_SIZE_TBS, BYTE_SIZE_RSA2048),
		Name:        dpl.Name,
		Version:     1,
		Description: "Proves that a public RSA-2048 modulus is the subject public key of a secret document signer TBS certificate",
		InputParser: dpl.InputParser{TBSMaxLen: BYTE_SIZE_TBS, ModulusLen: BYTE_SIZE_RSA2048},
	},
	seh.Name: {
		Circuit:     seh.NewCircuit(BYTE_SIZE_DG1_TD3, BYTE_SIZE_ECONTENT),
		Name:        seh.Name,
		Version:     1,
		Description: "Proves that the hash of a secret DG1 is embedded in a secret LDS security object with the public signed message digest",
		InputParser: seh.InputParser{ReferenceLen: BYTE_SIZE_DG1_TD3, EContentMaxLen: BYTE_SIZE_ECONTENT},
	},
	sse.Name: {
		Circuit:     sse.NewCircuit(BYTE_SIZE_SIGNED_ATTRS),
		Name:        sse.Name,
		Version:     1,
		Description: "Proves that secret signed attributes carrying the public message digest are signed with ECDSA P-256 by a public document signer key",
		InputParser: sse.InputParser{SignedAttrsMaxLen: BYTE_SIZE_SIGNED_ATTRS},
	},
	cma.Name: {
		Circuit:     cma.NewCircuit(BYTE_SIZE_DG1_TD3, cma.DG1MRZOffset, BYTE_SIZE_ECONTENT),
		Name:        cma.Name,
		Version:     1,
		Description: "Proves that the date of birth in a secret TD3 DG1, embedded in the signed LDS security object, is before a public date",
		InputParser: cma.InputParser{DG1Len: BYTE_SIZE_DG1_TD3, EContentMaxLen: BYTE_SIZE_ECONTENT},
	},
}
