package fixtures

import (
	"fmt"

	"github.com/vybium/vybium-valida-verifier/internal/vybium-valida/protocols"
	"github.com/vybium/vybium-valida-verifier/internal/vybium-valida/utils"
	"github.com/vybium/vybium-valida-verifier/internal/vybium-valida/vm"
)

// Execution is a recorded run of an executable.
type Execution struct {
	Executable   *vm.Executable
	State        *vm.MachineState
	Steps        []vm.StepRecord
	PublicValues *protocols.PublicValues
}

// Execute loads and runs an executable the way the verifier does, recording
// the processor trace. A nil stackHeight selects the default and a nil
// advice supplies no advice.
func Execute(executable []byte, stackHeight *uint32, advice *string) (*Execution, error) {
	exe, err := vm.LoadExecutable(executable)
	if err != nil {
		return nil, err
	}

	var opts []vm.StateOption
	if stackHeight != nil {
		opts = append(opts, vm.WithStackHeight(*stackHeight))
	}
	state, err := vm.NewMachineState(exe, opts...)
	if err != nil {
		return nil, err
	}

	var source vm.AdviceSource
	if advice != nil {
		source = vm.NewStringAdvice(*advice)
	}
	recorder := vm.NewTraceRecorder()
	if err := state.Run(source, recorder); err != nil {
		return nil, err
	}

	return &Execution{
		Executable:   exe,
		State:        state,
		Steps:        recorder.Steps(),
		PublicValues: protocols.NewPublicValues(state),
	}, nil
}

// ProveExecution proves a recorded run under cfg
func ProveExecution(cfg *utils.VerificationConfig, run *Execution) (*protocols.MachineProof, error) {
	prover, err := protocols.NewProver(cfg)
	if err != nil {
		return nil, err
	}
	return prover.Prove(run.Steps, run.PublicValues)
}

// Prove executes an executable and returns an encoded honest proof under
// the default configuration.
func Prove(executable []byte, stackHeight *uint32, advice *string) ([]byte, error) {
	run, err := Execute(executable, stackHeight, advice)
	if err != nil {
		return nil, fmt.Errorf("failed to execute: %w", err)
	}
	cfg, err := utils.DefaultConfig()
	if err != nil {
		return nil, err
	}
	proof, err := ProveExecution(cfg, run)
	if err != nil {
		return nil, fmt.Errorf("failed to prove: %w", err)
	}
	return protocols.EncodeProof(proof)
}
