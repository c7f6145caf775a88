/*
SPDX-FileCopyrightText: Copyright (c) 2026 NVIDIA CORPORATION. All rights reserved.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.

SPDX-License-Identifier: Apache-2.0
*/

package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/dynamic/dynamicinformer"
	"k8s.io/client-go/informers"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/cache"
	"k8s.io/client-go/tools/clientcmd"
	"sigs.k8s.io/yaml"

	"github.com/NVIDIA/pinglow/internal/model"
)

// apiGroup is the API group/version the four custom kinds share.
const (
	apiGroup   = "pinglow.nvidia.com"
	apiVersion = "v1alpha1"
)

var (
	checkGVR   = schema.GroupVersionResource{Group: apiGroup, Version: apiVersion, Resource: "checks"}
	scriptGVR  = schema.GroupVersionResource{Group: apiGroup, Version: apiVersion, Resource: "scripts"}
	channelGVR = schema.GroupVersionResource{Group: apiGroup, Version: apiVersion, Resource: "notificationchannels"}
)

// K8sSource is the cluster-backed Source: a typed Secret informer plus
// dynamic informers over the three custom-resource kinds, all scoped to a
// single namespace. Fetches are served from the informer caches; events are
// normalized from each informer's own add/update/delete callbacks into a
// single ResourceEvent stream.
type K8sSource struct {
	namespace string
	logger    *slog.Logger

	dynamicClient dynamic.Interface

	secretInformer  cache.SharedIndexInformer
	checkInformer   cache.SharedIndexInformer
	scriptInformer  cache.SharedIndexInformer
	channelInformer cache.SharedIndexInformer

	events chan ResourceEvent
}

// NewK8sSource builds a K8sSource using in-cluster config, falling back to
// the local kubeconfig (the same precedence the cluster tooling elsewhere in
// this codebase uses).
func NewK8sSource(ctx context.Context, namespace string, logger *slog.Logger) (*K8sSource, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := loadKubeConfig()
	if err != nil {
		return nil, fmt.Errorf("load kubernetes config: %w", err)
	}

	clientset, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("create kubernetes clientset: %w", err)
	}

	dynClient, err := dynamic.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("create dynamic client: %w", err)
	}

	s := &K8sSource{
		namespace:     namespace,
		logger:        logger,
		dynamicClient: dynClient,
		events:        make(chan ResourceEvent, 256),
	}

	coreFactory := informers.NewSharedInformerFactoryWithOptions(clientset, 0,
		informers.WithNamespace(namespace))
	s.secretInformer = coreFactory.Core().V1().Secrets().Informer()

	dynFactory := dynamicinformer.NewFilteredDynamicSharedInformerFactory(dynClient, 0, namespace, nil)
	s.checkInformer = dynFactory.ForResource(checkGVR).Informer()
	s.scriptInformer = dynFactory.ForResource(scriptGVR).Informer()
	s.channelInformer = dynFactory.ForResource(channelGVR).Informer()

	s.wireHandlers()

	s.secretInformer.SetWatchErrorHandler(s.logWatchError("Secret"))
	s.checkInformer.SetWatchErrorHandler(s.logWatchError("Check"))
	s.scriptInformer.SetWatchErrorHandler(s.logWatchError("Script"))
	s.channelInformer.SetWatchErrorHandler(s.logWatchError("NotificationChannel"))

	coreFactory.Start(ctx.Done())
	dynFactory.Start(ctx.Done())

	if !cache.WaitForCacheSync(ctx.Done(),
		s.secretInformer.HasSynced, s.checkInformer.HasSynced,
		s.scriptInformer.HasSynced, s.channelInformer.HasSynced) {
		return nil, fmt.Errorf("failed to sync resource informer caches")
	}

	go func() {
		<-ctx.Done()
		close(s.events)
	}()

	return s, nil
}

func loadKubeConfig() (*rest.Config, error) {
	if cfg, err := rest.InClusterConfig(); err == nil {
		return cfg, nil
	}
	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	overrides := &clientcmd.ConfigOverrides{}
	return clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, overrides).ClientConfig()
}

func (s *K8sSource) logWatchError(kind string) func(*cache.Reflector, error) {
	return func(_ *cache.Reflector, err error) {
		s.logger.Error("resource watch error, reflector will relist", slog.String("kind", kind), slog.String("error", err.Error()))
	}
}

func (s *K8sSource) wireHandlers() {
	s.secretInformer.AddEventHandler(cache.ResourceEventHandlerFuncs{
		AddFunc:    func(obj interface{}) { s.emitSecret(obj, false) },
		UpdateFunc: func(_, newObj interface{}) { s.emitSecret(newObj, false) },
		DeleteFunc: func(obj interface{}) { s.emitSecret(obj, true) },
	})
	s.checkInformer.AddEventHandler(s.unstructuredHandler(KindCheck))
	s.scriptInformer.AddEventHandler(s.unstructuredHandler(KindScript))
	s.channelInformer.AddEventHandler(s.unstructuredHandler(KindChannel))
}

func (s *K8sSource) emitSecret(obj interface{}, deleted bool) {
	secret, ok := obj.(*corev1.Secret)
	if !ok {
		if tomb, ok := obj.(cache.DeletedFinalStateUnknown); ok {
			secret, ok = tomb.Obj.(*corev1.Secret)
			if !ok {
				return
			}
		} else {
			return
		}
	}
	s.send(ResourceEvent{Kind: KindSecret, Name: secret.Name, Deleted: deleted})
}

func (s *K8sSource) unstructuredHandler(kind ResourceKind) cache.ResourceEventHandlerFuncs {
	name := func(obj interface{}) (string, bool) {
		u, ok := obj.(*unstructured.Unstructured)
		if !ok {
			if tomb, ok := obj.(cache.DeletedFinalStateUnknown); ok {
				u, ok = tomb.Obj.(*unstructured.Unstructured)
				if !ok {
					return "", false
				}
			} else {
				return "", false
			}
		}
		return u.GetName(), true
	}
	return cache.ResourceEventHandlerFuncs{
		AddFunc: func(obj interface{}) {
			if n, ok := name(obj); ok {
				s.send(ResourceEvent{Kind: kind, Name: n})
			}
		},
		UpdateFunc: func(_, newObj interface{}) {
			if n, ok := name(newObj); ok {
				s.send(ResourceEvent{Kind: kind, Name: n})
			}
		},
		DeleteFunc: func(obj interface{}) {
			if n, ok := name(obj); ok {
				s.send(ResourceEvent{Kind: kind, Name: n, Deleted: true})
			}
		},
	}
}

func (s *K8sSource) send(ev ResourceEvent) {
	select {
	case s.events <- ev:
	case <-time.After(time.Second):
		s.logger.Warn("dropped resource event, reconciler event channel full",
			slog.String("kind", ev.Kind.String()), slog.String("name", ev.Name))
	}
}

// Events implements Source.
func (s *K8sSource) Events() <-chan ResourceEvent { return s.events }

// FetchCheck implements Source.
func (s *K8sSource) FetchCheck(name string) (*model.Check, error) {
	var check model.Check
	if err := s.fetchUnstructured(s.checkInformer, name, &check); err != nil {
		return nil, err
	}
	check.Name = name
	return &check, nil
}

// FetchScript implements Source.
func (s *K8sSource) FetchScript(name string) (*model.Script, error) {
	var script model.Script
	if err := s.fetchUnstructured(s.scriptInformer, name, &script); err != nil {
		return nil, err
	}
	script.Name = name
	return &script, nil
}

// FetchChannel implements Source.
func (s *K8sSource) FetchChannel(name string) (*model.TelegramChannel, error) {
	var channel model.TelegramChannel
	if err := s.fetchUnstructured(s.channelInformer, name, &channel); err != nil {
		return nil, err
	}
	channel.Name = name
	return &channel, nil
}

// SetMute implements PatchMute: it merge-patches the Check's
// spec.muteNotifications/spec.muteNotificationsUntil fields upstream. The
// reconciler observes the resulting Check update event through its own
// informer and mirrors it into the Resource Model; SetMute itself does not
// touch the Model.
func (s *K8sSource) SetMute(name string, mute bool, until *string) error {
	spec := map[string]interface{}{"muteNotifications": mute}
	if until != nil {
		spec["muteNotificationsUntil"] = *until
	} else {
		spec["muteNotificationsUntil"] = nil
	}
	patch := map[string]interface{}{"spec": spec}
	raw, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("marshal mute patch for %q: %w", name, err)
	}

	_, err = s.dynamicClient.Resource(checkGVR).Namespace(s.namespace).
		Patch(context.Background(), name, types.MergePatchType, raw, metav1.PatchOptions{})
	if err != nil {
		return fmt.Errorf("patch mute on check %q: %w", name, err)
	}
	return nil
}

// FetchSecret implements Source.
func (s *K8sSource) FetchSecret(name string) (*model.Secret, error) {
	obj, exists, err := s.secretInformer.GetStore().GetByKey(s.namespace + "/" + name)
	if err != nil {
		return nil, fmt.Errorf("lookup secret %q: %w", name, err)
	}
	if !exists {
		return nil, ErrNotFound
	}
	secret, ok := obj.(*corev1.Secret)
	if !ok {
		return nil, fmt.Errorf("unexpected secret cache entry type %T", obj)
	}

	data := make(map[string]string, len(secret.Data))
	for k, v := range secret.Data {
		data[k] = string(v)
	}
	for k, v := range secret.StringData {
		data[k] = v
	}
	return &model.Secret{Name: name, Data: data}, nil
}

// fetchUnstructured looks up name in informer's cache and decodes its spec
// into out via a YAML round-trip, the standard way to turn an
// *unstructured.Unstructured into a typed struct without a generated client.
func (s *K8sSource) fetchUnstructured(informer cache.SharedIndexInformer, name string, out interface{}) error {
	obj, exists, err := informer.GetStore().GetByKey(s.namespace + "/" + name)
	if err != nil {
		return fmt.Errorf("lookup %q: %w", name, err)
	}
	if !exists {
		return ErrNotFound
	}
	u, ok := obj.(*unstructured.Unstructured)
	if !ok {
		return fmt.Errorf("unexpected cache entry type %T", obj)
	}

	spec, found, err := unstructured.NestedMap(u.Object, "spec")
	if err != nil {
		return fmt.Errorf("read spec of %q: %w", name, err)
	}
	if !found {
		spec = map[string]interface{}{}
	}

	raw, err := yaml.Marshal(spec)
	if err != nil {
		return fmt.Errorf("marshal spec of %q: %w", name, err)
	}
	if err := yaml.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode spec of %q: %w", name, err)
	}
	return nil
}
