package reserve

import "fmt"

// AddressSet names the deployed contracts a facade instance binds to.
// SanityRates may be empty; the other two may not.
type AddressSet struct {
	Reserve         string `yaml:"reserve" json:"reserve"`
	ConversionRates string `yaml:"conversion_rates" json:"conversion_rates"`
	SanityRates     string `yaml:"sanity_rates" json:"sanity_rates"`
}

// MainnetAddresses is the canonical mainnet reserve deployment.
var MainnetAddresses = AddressSet{
	Reserve:         "0x63825c174ab367968EC60f061753D3bbD36A0D8F",
	ConversionRates: "0x798AbDA6Cc246D0EDbA912092A2a3dBd3d11191B",
	SanityRates:     "0xdfc85C08d5e5924aB49750E006CF8a826ffb7B13",
}

// RopstenAddresses is the staging deployment. It runs without a sanity-rates
// contract, which makes it the usual target for exercising the degradation
// path end to end.
var RopstenAddresses = AddressSet{
	Reserve:         "0x2C5a182d280EeB5824377B98CD74871f78d6b8BC",
	ConversionRates: "0xFEe2A5D79C10B6d81fd47AE11242FA6f1b0D1a94",
}

// KnownAddresses returns the preset address set for a chain ID, when one is
// bundled. Custom deployments pass their own AddressSet to New instead.
func KnownAddresses(chainID int64) (AddressSet, error) {
	switch chainID {
	case 1:
		return MainnetAddresses, nil
	case 3:
		return RopstenAddresses, nil
	default:
		return AddressSet{}, fmt.Errorf("no bundled addresses for chain %d", chainID)
	}
}
