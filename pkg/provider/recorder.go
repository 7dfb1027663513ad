package provider

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cuemby/stagehand/pkg/types"
)

const kindIngressRule types.ResourceKind = "ingress-rule"

// Declaration modes
const (
	ModeCreate = "create"
	ModeLookup = "lookup"
)

// Declaration is one resource recorded by the Recorder
type Declaration struct {
	Stack      string             `json:"stack" yaml:"stack"`
	Kind       types.ResourceKind `json:"kind" yaml:"kind"`
	LogicalID  string             `json:"logicalId" yaml:"logicalId"`
	Mode       string             `json:"mode" yaml:"mode"`
	Properties map[string]any     `json:"properties,omitempty" yaml:"properties,omitempty"`
	References []string           `json:"references,omitempty" yaml:"references,omitempty"`
}

// ActionRecord is one recorded pipeline action
type ActionRecord struct {
	Name     string           `json:"name" yaml:"name"`
	Kind     types.ActionKind `json:"kind" yaml:"kind"`
	RunOrder int              `json:"runOrder" yaml:"runOrder"`
	Input    string           `json:"input,omitempty" yaml:"input,omitempty"`
	Outputs  []string         `json:"outputs,omitempty" yaml:"outputs,omitempty"`
	Target   string           `json:"target,omitempty" yaml:"target,omitempty"`
	Settings map[string]any   `json:"settings,omitempty" yaml:"settings,omitempty"`
}

// StageRecord is one recorded pipeline stage
type StageRecord struct {
	Name    string         `json:"name" yaml:"name"`
	Actions []ActionRecord `json:"actions" yaml:"actions"`
}

// PipelineRecord is a recorded pipeline and its stages in insertion order
type PipelineRecord struct {
	LogicalID string        `json:"logicalId" yaml:"logicalId"`
	Stages    []StageRecord `json:"stages" yaml:"stages"`
}

// Document is the serializable plan produced by a Recorder
type Document struct {
	Stacks    map[types.StackRole]string `json:"stacks" yaml:"stacks"`
	Tags      []types.Tag                `json:"tags,omitempty" yaml:"tags,omitempty"`
	Resources []Declaration              `json:"resources" yaml:"resources"`
	Pipelines []PipelineRecord           `json:"pipelines,omitempty" yaml:"pipelines,omitempty"`
}

type recordedHandle struct {
	id   string
	kind types.ResourceKind
}

func (h *recordedHandle) LogicalID() string        { return h.id }
func (h *recordedHandle) Kind() types.ResourceKind { return h.kind }

// Attr renders a deploy-time reference as ${LogicalID.Attribute}
func (h *recordedHandle) Attr(name string) string {
	return fmt.Sprintf("${%s.%s}", h.id, name)
}

// Recorder is an in-memory Provider that records every declaration in
// order. It backs plan mode and serves as the planner test double.
type Recorder struct {
	mu        sync.Mutex
	stacks    map[types.StackRole]string
	decls     []Declaration
	index     map[string]int
	pipelines []*PipelineRecord
	tags      []types.Tag
	failures  map[string]error
}

// NewRecorder creates a recorder for the given stack names
func NewRecorder(appStack, infraStack string) *Recorder {
	return &Recorder{
		stacks: map[types.StackRole]string{
			types.StackApp:   appStack,
			types.StackInfra: infraStack,
		},
		index:    make(map[string]int),
		failures: make(map[string]error),
	}
}

// Fail makes every later call matching key return err. Key is either an
// operation name such as "LookupHostedZone" or a resource logical ID.
func (r *Recorder) Fail(key string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[key] = err
}

// Declarations returns all recorded declarations in order
func (r *Recorder) Declarations() []Declaration {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Declaration, len(r.decls))
	copy(out, r.decls)
	return out
}

// Lookup returns the declaration with the given logical ID in any stack
func (r *Recorder) Lookup(id string) (Declaration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.decls {
		if d.LogicalID == id {
			return d, true
		}
	}
	return Declaration{}, false
}

// Count returns how many declarations of kind were recorded
func (r *Recorder) Count(kind types.ResourceKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, d := range r.decls {
		if d.Kind == kind {
			n++
		}
	}
	return n
}

// PipelineStages returns the recorded stages of a pipeline
func (r *Recorder) PipelineStages(pipelineID string) []StageRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.pipelines {
		if p.LogicalID == pipelineID {
			out := make([]StageRecord, len(p.Stages))
			copy(out, p.Stages)
			return out
		}
	}
	return nil
}

// Document snapshots the recorded plan
func (r *Recorder) Document() *Document {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc := &Document{
		Stacks:    make(map[types.StackRole]string, len(r.stacks)),
		Tags:      append([]types.Tag(nil), r.tags...),
		Resources: append([]Declaration(nil), r.decls...),
	}
	for role, name := range r.stacks {
		doc.Stacks[role] = name
	}
	for _, p := range r.pipelines {
		doc.Pipelines = append(doc.Pipelines, PipelineRecord{
			LogicalID: p.LogicalID,
			Stages:    append([]StageRecord(nil), p.Stages...),
		})
	}
	return doc
}

func (r *Recorder) Network(ctx context.Context, spec NetworkSpec) (types.Handle, error) {
	return r.declare("Network", types.StackApp, types.KindNetwork, spec.ID, ModeCreate,
		map[string]any{"maxAzs": spec.MaxAZs})
}

func (r *Recorder) SecurityGroup(ctx context.Context, spec SecurityGroupSpec) (types.Handle, error) {
	return r.declare("SecurityGroup", types.StackApp, types.KindSecurityGroup, spec.ID, ModeCreate,
		map[string]any{"name": spec.Name, "description": spec.Description},
		spec.Network)
}

func (r *Recorder) AllowIngress(ctx context.Context, spec IngressSpec) error {
	if spec.Target == nil || spec.Source == nil {
		return &ProviderError{Op: "AllowIngress", Resource: "ingress", Err: fmt.Errorf("target and source are required")}
	}
	id := fmt.Sprintf("%s-from-%s-%d", spec.Target.LogicalID(), spec.Source.LogicalID(), spec.Port)
	_, err := r.declare("AllowIngress", types.StackApp, kindIngressRule, id, ModeCreate,
		map[string]any{"protocol": "tcp", "port": spec.Port, "description": spec.Description},
		spec.Target, spec.Source)
	return err
}

func (r *Recorder) ImageRepository(ctx context.Context, spec ImageRepositorySpec) (types.Handle, error) {
	switch src := spec.Source.(type) {
	case types.ExistingRepository:
		return r.declare("ImageRepository", types.StackApp, types.KindImageRepository, spec.ID, ModeLookup,
			map[string]any{"repositoryName": src.Name})
	case types.NewRepository:
		return r.declare("ImageRepository", types.StackApp, types.KindImageRepository, spec.ID, ModeCreate,
			map[string]any{"repositoryName": src.Name, "imageScanOnPush": true})
	default:
		return nil, &ProviderError{Op: "ImageRepository", Resource: spec.ID, Err: fmt.Errorf("unsupported image source %T", spec.Source)}
	}
}

func (r *Recorder) Cluster(ctx context.Context, spec ClusterSpec) (types.Handle, error) {
	return r.declare("Cluster", types.StackApp, types.KindCluster, spec.ID, ModeCreate, nil, spec.Network)
}

func (r *Recorder) Role(ctx context.Context, spec RoleSpec) (types.Handle, error) {
	return r.declare("Role", types.StackApp, types.KindRole, spec.ID, ModeCreate,
		map[string]any{"roleName": spec.Name, "assumedBy": spec.AssumedBy})
}

func (r *Recorder) Bucket(ctx context.Context, spec BucketSpec) (types.Handle, error) {
	return r.declare("Bucket", types.StackApp, types.KindBucket, spec.ID, ModeCreate, nil)
}

func (r *Recorder) LookupSecret(ctx context.Context, spec SecretLookupSpec) (types.Handle, error) {
	return r.declare("LookupSecret", types.StackApp, types.KindSecret, spec.ID, ModeLookup,
		map[string]any{"secretName": spec.Name})
}

func (r *Recorder) GenerateSecret(ctx context.Context, spec GeneratedSecretSpec) (types.Handle, error) {
	template := make(map[string]any, len(spec.Template))
	for k, v := range spec.Template {
		template[k] = v
	}
	return r.declare("GenerateSecret", types.StackApp, types.KindSecret, spec.ID, ModeCreate,
		map[string]any{
			"secretName":         spec.Name,
			"template":           template,
			"generateStringKey":  spec.GenerateKey,
			"excludePunctuation": spec.Policy.ExcludePunctuation,
			"includeSpace":       spec.Policy.IncludeSpace,
		})
}

func (r *Recorder) LookupHostedZone(ctx context.Context, spec HostedZoneSpec) (types.Handle, error) {
	return r.declare("LookupHostedZone", types.StackApp, types.KindHostedZone, spec.ID, ModeLookup,
		map[string]any{"domainName": spec.DomainName})
}

func (r *Recorder) Certificate(ctx context.Context, spec CertificateSpec) (types.Handle, error) {
	switch src := spec.Source.(type) {
	case types.ExistingCertificate:
		return r.declare("Certificate", types.StackApp, types.KindCertificate, spec.ID, ModeLookup,
			map[string]any{"certificateArn": src.ARN})
	case types.DNSValidatedCertificate:
		if spec.Zone == nil {
			return nil, &ProviderError{Op: "Certificate", Resource: spec.ID, Err: fmt.Errorf("dns validation requires a hosted zone")}
		}
		return r.declare("Certificate", types.StackApp, types.KindCertificate, spec.ID, ModeCreate,
			map[string]any{"domainName": spec.DomainName, "validation": "dns"},
			spec.Zone)
	default:
		return nil, &ProviderError{Op: "Certificate", Resource: spec.ID, Err: fmt.Errorf("unsupported certificate source %T", spec.Source)}
	}
}

func (r *Recorder) DatabaseCluster(ctx context.Context, spec DatabaseSpec) (types.Handle, error) {
	return r.declare("DatabaseCluster", types.StackApp, types.KindDatabaseCluster, spec.ID, ModeCreate,
		map[string]any{
			"engine":        spec.Engine,
			"engineVersion": spec.EngineVersion,
			"instanceType":  spec.InstanceType,
			"port":          spec.Port,
			"subnets":       "private-with-egress",
		},
		spec.Credentials, spec.Network, spec.SecurityGroup)
}

func (r *Recorder) LoadBalancedService(ctx context.Context, spec ServiceSpec) (types.Handle, error) {
	env := make([]string, 0, len(spec.Environment))
	for _, e := range spec.Environment {
		env = append(env, e.Name)
	}
	secrets := make(map[string]any, len(spec.Secrets))
	refs := []types.Handle{spec.Cluster, spec.SecurityGroup, spec.ImageRepository, spec.TaskRole, spec.Certificate, spec.Zone}
	for _, name := range spec.Secrets.Names() {
		ref := spec.Secrets[name]
		if ref.Secret == nil {
			return nil, &ProviderError{Op: "LoadBalancedService", Resource: spec.ID, Err: fmt.Errorf("secret %s has no handle", name)}
		}
		secrets[name] = ref.Secret.LogicalID() + ":" + ref.Field
		refs = append(refs, ref.Secret)
	}

	return r.declare("LoadBalancedService", types.StackApp, types.KindService, spec.ID, ModeCreate,
		map[string]any{
			"containerName":      spec.ContainerName,
			"containerPort":      spec.ContainerPort,
			"cpu":                spec.CPU,
			"memoryMiB":          spec.MemoryMiB,
			"desiredCount":       spec.DesiredCount,
			"environment":        env,
			"secrets":            secrets,
			"domainName":         spec.DomainName,
			"publicLoadBalancer": spec.PublicLoadBalancer,
			"redirectHttp":       spec.RedirectHTTP,
			"enableLogging":      spec.EnableLogging,
			"managedTags":        spec.ManagedTags,
		},
		refs...)
}

func (r *Recorder) BuildProject(ctx context.Context, spec BuildProjectSpec) (types.Handle, error) {
	props := map[string]any{
		"privileged":      spec.Privileged,
		"managedPolicies": spec.ManagedPolicies,
	}
	if spec.Name != "" {
		props["projectName"] = spec.Name
	}
	if spec.BuildSpec != nil {
		props["buildSpec"] = spec.BuildSpec
	} else {
		props["buildSpecFile"] = spec.BuildSpecFile
	}
	if len(spec.Statements) > 0 {
		stmts := make([]map[string]any, 0, len(spec.Statements))
		for _, s := range spec.Statements {
			stmts = append(stmts, map[string]any{"actions": s.Actions, "resources": s.Resources})
		}
		props["statements"] = stmts
	}
	return r.declare("BuildProject", stackOrApp(spec.Stack), types.KindBuildProject, spec.ID, ModeCreate, props)
}

func (r *Recorder) Pipeline(ctx context.Context, spec PipelineSpec) (types.Handle, error) {
	h, err := r.declare("Pipeline", stackOrApp(spec.Stack), types.KindPipeline, spec.ID, ModeCreate,
		map[string]any{"pipelineName": spec.Name, "crossAccountKeys": spec.CrossAccountKeys})
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.pipelines = append(r.pipelines, &PipelineRecord{LogicalID: spec.ID})
	r.mu.Unlock()
	return h, nil
}

func (r *Recorder) AddPipelineStage(ctx context.Context, pipeline types.Handle, stage types.PipelineStage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if pipeline == nil {
		return &ProviderError{Op: "AddPipelineStage", Resource: stage.Name, Err: fmt.Errorf("no pipeline")}
	}
	if err := r.failure("AddPipelineStage", stage.Name); err != nil {
		return &ProviderError{Op: "AddPipelineStage", Resource: stage.Name, Err: err}
	}

	var target *PipelineRecord
	for _, p := range r.pipelines {
		if p.LogicalID == pipeline.LogicalID() {
			target = p
			break
		}
	}
	if target == nil {
		return &ProviderError{Op: "AddPipelineStage", Resource: stage.Name, Err: fmt.Errorf("unknown pipeline %s", pipeline.LogicalID())}
	}

	rec := StageRecord{Name: stage.Name, Actions: make([]ActionRecord, 0, len(stage.Actions))}
	for _, a := range stage.Actions {
		rec.Actions = append(rec.Actions, recordAction(a))
	}
	target.Stages = append(target.Stages, rec)
	return nil
}

func (r *Recorder) Tag(key, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, t := range r.tags {
		if t.Key == key {
			r.tags[i].Value = value
			return
		}
	}
	r.tags = append(r.tags, types.Tag{Key: key, Value: value})
}

func (r *Recorder) declare(op string, role types.StackRole, kind types.ResourceKind, id, mode string, props map[string]any, refs ...types.Handle) (types.Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.failure(op, id); err != nil {
		return nil, &ProviderError{Op: op, Resource: id, Err: err}
	}
	if id == "" {
		return nil, &ProviderError{Op: op, Resource: string(kind), Err: fmt.Errorf("logical id is required")}
	}

	stack := r.stacks[role]
	key := stack + "/" + id
	if _, exists := r.index[key]; exists {
		return nil, &ProviderError{Op: op, Resource: id, Err: fmt.Errorf("logical id already declared in stack %s", stack)}
	}

	var references []string
	for _, ref := range refs {
		if ref == nil {
			return nil, &ProviderError{Op: op, Resource: id, Err: fmt.Errorf("missing reference")}
		}
		references = append(references, ref.LogicalID())
	}

	r.index[key] = len(r.decls)
	r.decls = append(r.decls, Declaration{
		Stack:      stack,
		Kind:       kind,
		LogicalID:  id,
		Mode:       mode,
		Properties: props,
		References: references,
	})
	return &recordedHandle{id: id, kind: kind}, nil
}

func (r *Recorder) failure(op, id string) error {
	if err, ok := r.failures[op]; ok {
		return err
	}
	if err, ok := r.failures[id]; ok {
		return err
	}
	return nil
}

func recordAction(a types.Action) ActionRecord {
	rec := ActionRecord{
		Name:     a.Name,
		Kind:     a.Kind,
		RunOrder: a.RunOrder,
		Input:    a.Input,
		Outputs:  append([]string(nil), a.Outputs...),
	}
	switch {
	case a.Source != nil:
		rec.Settings = map[string]any{
			"connectionArn": a.Source.ConnectionARN,
			"owner":         a.Source.Owner,
			"repo":          a.Source.Repo,
			"branch":        a.Source.Branch,
		}
	case a.Build != nil:
		if a.Build.Project != nil {
			rec.Target = a.Build.Project.LogicalID()
		}
		env := make(map[string]any, len(a.Build.Environment))
		for _, e := range a.Build.Environment {
			env[e.Name] = e.Value
		}
		rec.Settings = map[string]any{"environment": env}
	case a.Approval != nil:
		if len(a.Approval.NotifyEmails) > 0 {
			rec.Settings = map[string]any{"notifyEmails": a.Approval.NotifyEmails}
		}
	case a.Deploy != nil:
		if a.Deploy.Service != nil {
			rec.Target = a.Deploy.Service.LogicalID()
		}
	case a.ChangeSet != nil:
		rec.Target = a.ChangeSet.StackName
		settings := map[string]any{"changeSetName": a.ChangeSet.ChangeSetName}
		if a.ChangeSet.TemplatePath != "" {
			settings["templatePath"] = a.ChangeSet.TemplatePath
			settings["adminPermissions"] = a.ChangeSet.AdminPermissions
		}
		rec.Settings = settings
	}
	return rec
}

func stackOrApp(role types.StackRole) types.StackRole {
	if role == "" {
		return types.StackApp
	}
	return role
}

// SortedKinds returns the distinct declared kinds in sorted order
func (d *Document) SortedKinds() []types.ResourceKind {
	seen := make(map[types.ResourceKind]bool)
	var kinds []types.ResourceKind
	for _, decl := range d.Resources {
		if !seen[decl.Kind] {
			seen[decl.Kind] = true
			kinds = append(kinds, decl.Kind)
		}
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

var _ Provider = (*Recorder)(nil)
