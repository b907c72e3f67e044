package populate

import (
	"os"

	"gopkg.in/yaml.v3"
)

// load populate worker config from a file.
//
// args:
//   - filepath: filepath refers a config file.
//
// returns *PopulateConfig, error:
//
//	When loading success, returns `(*PopulateConfig, nil)`.
//	Otherwise, returns `(nil, error)`.
func LoadPopulateConfig(filepath string) (*PopulateConfig, error) {
	content, err := os.ReadFile(filepath)
	if err != nil {
		return nil, err
	}
	return Unmarshal(content)
}

func Unmarshal(conf []byte) (out *PopulateConfig, err error) {
	var _out *PopulateConfigMarshall
	err = yaml.Unmarshal(conf, &_out)
	if err != nil {
		return nil, err
	}
	out = TrySeal(_out)
	return out, nil
}
