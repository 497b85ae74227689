package config

// AuditWeb3Config contains the smart contract address and protocol constants
// for the RLA audit contract deployed on a given network.
type AuditWeb3Config struct {
	// AuditContract is the address of the poll-audit contract exposing
	// commitResult/revealSample/submitPmProof/submitTvProof/finalize and the
	// challenge flow.
	AuditContract string
}

// DefaultConfig contains the default audit contract address by network
// shortname.
var DefaultConfig = map[string]AuditWeb3Config{
	"sep": {
		AuditContract: "0x449598f6A4C53ABA99e6029f92757f110bFCEdB5",
	},
}

// AvailableNetworks contains the list of networks where the audit contract
// is deployed.
var AvailableNetworks = []string{
	"sep",
}
